package orders

const TopicOrderNotify = "stars.order.notify"

// Partition key = order_id so every message about one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
