package transaction

import "github.com/gin-gonic/gin"

type IHandler interface {
	ListBySwap(c *gin.Context)
}
