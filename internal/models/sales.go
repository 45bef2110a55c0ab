package models

// SalesBucket aggregates order count and revenue for one day or one month.
// Change is the period-over-period display string ("+12%", "-5%", "0%").
type SalesBucket struct {
	PeriodKey  string `bson:"periodKey" json:"periodKey"`
	OrderCount int    `bson:"orders" json:"orders"`
	Revenue    int64  `bson:"revenue" json:"revenue"`
	Change     string `bson:"change" json:"change"`
}

// SalesRollup holds the retained buckets, most recent first: 7 daily and
// 6 monthly. ProcessedIDs lists orders already folded into the buckets so a
// repeated record call for the same order is a no-op.
type SalesRollup struct {
	Daily        []SalesBucket `bson:"daily" json:"daily"`
	Monthly      []SalesBucket `bson:"monthly" json:"monthly"`
	ProcessedIDs []string      `bson:"processedIds,omitempty" json:"processedIds,omitempty"`
}
