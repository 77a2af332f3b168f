// internal/contracts/topics.go
package contracts

// Kafka 主题名。编排器与各协作方必须使用同一组常量。
const (
	TopicOrderCreated          = "order-created"
	TopicInventoryCheck        = "inventory-check"
	TopicInventoryCheckResult  = "inventory-check-result"
	TopicInventoryUpdate       = "inventory-update"
	TopicInventoryUpdateResult = "inventory-update-result"
	TopicPaymentRequest        = "payment-request"
	TopicPaymentRequestResult  = "payment-request-result"
	TopicPaymentRefund         = "payment-refund"
	TopicPaymentRefundResult   = "payment-refund-result"
	TopicNotifications         = "notifications"
)

// AllTopics 返回启动时需要确保存在的全部主题。
func AllTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicInventoryCheck,
		TopicInventoryCheckResult,
		TopicInventoryUpdate,
		TopicInventoryUpdateResult,
		TopicPaymentRequest,
		TopicPaymentRequestResult,
		TopicPaymentRefund,
		TopicPaymentRefundResult,
		TopicNotifications,
	}
}
