package orders

const (
	TopicOrderPlaced        = "plantnet.order.placed"
	TopicOrderStatusChanged = "plantnet.order.status_changed"
	TopicOrderCancelled     = "plantnet.order.cancelled"
)

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
