package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/the-monkeys/incentives/config"
)

func TestAmounts(t *testing.T) {
	a := amounts(config.Incentives{})
	assert.Equal(t, "CASHBACK", a.Type)
	assert.Equal(t, "USD", a.Currency)
	assert.Equal(t, 10.0, a.Simple)
	assert.Equal(t, 50.0, a.Quest)

	a = amounts(config.Incentives{IncentiveType: "POINTS", Currency: "EUR", SimpleAmount: 2, QuestAmount: 20})
	assert.Equal(t, "POINTS", a.Type)
	assert.Equal(t, "EUR", a.Currency)
	assert.Equal(t, 2.0, a.Simple)
	assert.Equal(t, 20.0, a.Quest)
}

func TestWithQueueDefaults(t *testing.T) {
	conf := config.RabbitMQ{}
	withQueueDefaults(&conf)
	assert.Equal(t, []string{"incentive_events_queue", "incentive_hot_queue"}, conf.Queues)
	assert.Equal(t, []string{"action.event", "action.event"}, conf.RoutingKeys)

	custom := config.RabbitMQ{Queues: []string{"q"}, RoutingKeys: []string{"k"}}
	withQueueDefaults(&custom)
	assert.Equal(t, []string{"q"}, custom.Queues)
}
