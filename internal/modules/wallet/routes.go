package wallet

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the caller's wallet under me and the top-up endpoint under admin.
func (h *Handler) RegisterRoutes(me, admin *gin.RouterGroup) {
	me.GET("/wallet", h.GetMyWallet)
	me.GET("/wallet/transactions", h.ListMyTransactions)

	admin.POST("/wallets/:user_id/topup", h.TopUp)
}
