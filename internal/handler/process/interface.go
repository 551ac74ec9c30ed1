package process

import "github.com/gin-gonic/gin"

type IHandler interface {
	List(c *gin.Context)
	Terminate(c *gin.Context)
	ScannerStatus(c *gin.Context)
	StartScanner(c *gin.Context)
}
