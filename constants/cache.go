package constants

// Counter store key patterns.
const (
	// limit:{limitId}:{userId}
	LimitCounterKey = "limit:%s:%s"

	// rule:ac:{campaignId}:{userId}
	ActionCountRuleKey = "rule:ac:%s:%s"

	// quest:{campaignId}:{userId}
	QuestSetKey = "quest:%s:%s"

	// quest:done:{campaignId}:{userId}
	QuestDoneKey = "quest:done:%s:%s"

	// cms:{tenantId}:{bucket}
	HotBucketKey = "cms:%s:%d"

	// hot:set:{tenantId}
	HotSetKey     = "hot:set:%s"
	HotSetPattern = "hot:set:*"
)
