package rabbitmq

// Exchange обменник уведомлений.
const Exchange = "notifications"

// Ключи маршрутизации.
const (
	RoutingBilling  = "billing"
	RoutingUpcoming = "upcoming"
)

// SkipRabbitMQTestsEnv значение SKIP_RABBITMQ_TESTS, отключающее тесты с брокером.
const SkipRabbitMQTestsEnv = "true"

// QueueConfig очередь и ключ, которым она привязана к Exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues очереди notification-sender.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.billing", RoutingKey: RoutingBilling},
		{QueueName: "notifications.upcoming", RoutingKey: RoutingUpcoming},
	}
}
