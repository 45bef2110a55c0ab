package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/models"
	"backend/internal/sales"
)

type salesView struct {
	Buckets           []models.SalesBucket `json:"buckets"`
	TotalOrders       int                  `json:"totalOrders"`
	TotalRevenue      int64                `json:"totalRevenue"`
	AverageOrderValue int64                `json:"averageOrderValue"`
}

func buildSalesView(buckets []models.SalesBucket) salesView {
	view := salesView{Buckets: buckets}
	if view.Buckets == nil {
		view.Buckets = []models.SalesBucket{}
	}
	for _, bucket := range buckets {
		view.TotalOrders += bucket.OrderCount
		view.TotalRevenue += bucket.Revenue
	}
	if view.TotalOrders > 0 {
		view.AverageOrderValue = view.TotalRevenue / int64(view.TotalOrders)
	}
	return view
}

// GetSalesSummary returns the dashboard rollup: retained daily and monthly
// buckets plus the derived totals and average order value per view.
func GetSalesSummary(aggregator *sales.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rollup := aggregator.Rollup()
		c.JSON(http.StatusOK, gin.H{
			"daily":   buildSalesView(rollup.Daily),
			"monthly": buildSalesView(rollup.Monthly),
		})
	}
}
