package swap

import "github.com/gin-gonic/gin"

type IHandler interface {
	GetSwap(c *gin.Context)
	AddLockSignature(c *gin.Context)
}
