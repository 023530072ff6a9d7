package constants

const (
	AggregationCompleted = "COMPLETED"

	IncentiveCashback = "CASHBACK"
	IncentivePoints   = "POINTS"
	IncentiveVoucher  = "VOUCHER"
)

// Queues consumed by the incentives service. Both are bound to the same
// routing key so every action event is delivered to each of them.
const (
	ActionEventsQueue = "incentive_events_queue"
	HotTrackingQueue  = "incentive_hot_queue"
	ActionRoutingKey  = "action.event"
)
