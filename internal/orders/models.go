package orders

import "time"

type Seller struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

type Plant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Image       string    `json:"image,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	Quantity    int       `json:"quantity"`
	Seller      Seller    `json:"seller"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// Order is a point-in-time purchase of one plant. UnitPriceCents, Quantity and
// PriceCents never change after Create; only Status and Debited do.
type Order struct {
	ID             string    `json:"id"`
	PlantID        string    `json:"plantId"`
	Customer       Customer  `json:"customer"`
	SellerEmail    string    `json:"seller"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	Quantity       int       `json:"quantity"`
	PriceCents     int64     `json:"priceCents"`
	Address        string    `json:"address"`
	Status         Status    `json:"status"`
	Debited        bool      `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Validate checks the fields Create requires.
func (o Order) Validate() error {
	switch {
	case o.PlantID == "":
		return Validationf("plant reference is required")
	case o.Customer.Email == "":
		return Validationf("customer email is required")
	case o.Quantity <= 0:
		return Validationf("quantity must be greater than zero")
	case o.Address == "":
		return Validationf("address is required")
	}
	return nil
}

// SellerOrder is the seller dashboard projection: the order plus the plant name.
type SellerOrder struct {
	Order
	Name string `json:"name"`
}

// CustomerOrder is the customer dashboard projection.
type CustomerOrder struct {
	Order
	Name     string `json:"name"`
	Image    string `json:"image"`
	Category string `json:"category"`
}

type Stats struct {
	TotalPlants  int64 `json:"totalPlants"`
	TotalUsers   int64 `json:"totalUsers"`
	TotalOrders  int64 `json:"totalOrders"`
	TotalRevenue int64 `json:"totalRevenue"`
}
