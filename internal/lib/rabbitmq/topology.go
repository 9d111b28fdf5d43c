package rabbitmq

// Имена обменника и очереди для записей аудита.
const (
	AuditExchange   = "audit"
	AuditQueue      = "access.audit"
	AuditRoutingKey = "access.decision"
)

// QueueConfig описывает очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Topology обменник и привязанные к нему очереди.
type Topology struct {
	Exchange string
	Kind     string
	Queues   []QueueConfig
}

// AuditTopology топология для доставки записей аудита писателю.
func AuditTopology() Topology {
	return Topology{
		Exchange: AuditExchange,
		Kind:     "direct",
		Queues: []QueueConfig{
			{QueueName: AuditQueue, RoutingKey: AuditRoutingKey},
		},
	}
}
