// Package gin provides a thin adapter that mounts the wallet session API on
// a gin engine. Handlers and error mapping live in the http package.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/0xWizop/incubator-sub002"
	httpws "github.com/0xWizop/incubator-sub002/http"
)

// WalletKey is the gin context key holding the connected wallet.
const WalletKey = "walletsession_wallet"

// NewEngine returns a gin engine with recovery and server's endpoints.
func NewEngine(server *httpws.Server) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	Register(engine, server)
	return engine
}

// Register adds server's endpoints to r.
func Register(r gin.IRouter, server *httpws.Server) {
	session := r.Group("/session")
	session.GET("", gin.WrapF(server.Status))
	session.POST("/connect", gin.WrapF(server.Connect))
	session.POST("/lock", gin.WrapF(server.Lock))
	session.POST("/signout", gin.WrapF(server.SignOut))
	session.POST("/switch", gin.WrapF(server.Switch))

	r.GET("/wallets", gin.WrapF(server.ListWallets))
	r.POST("/wallets", gin.WrapF(server.AddWallet))
	r.DELETE("/wallets/:chain/:address", func(c *gin.Context) {
		server.RemoveWallet(c.Writer, c.Request, c.Param("chain"), c.Param("address"))
	})

	r.GET("/prompt", gin.WrapF(server.Prompt))
	r.POST("/prompt/:id/resolve", func(c *gin.Context) {
		server.ResolvePrompt(c.Writer, c.Request, c.Param("id"))
	})
	r.POST("/prompt/:id/cancel", func(c *gin.Context) {
		server.CancelPrompt(c.Writer, c.Request, c.Param("id"))
	})
}

// RequireConnected is the gin form of the require-connected middleware. The
// wallet is stored under WalletKey and in the request context.
func RequireConnected(session *walletsession.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		reached := false
		mw := httpws.NewRequireConnectedMiddleware(session, nil)
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			c.Request = r
			if wallet, ok := httpws.WalletFromContext(r.Context()); ok {
				c.Set(WalletKey, wallet)
			}
		})).ServeHTTP(c.Writer, c.Request)

		if !reached {
			c.Abort()
			return
		}
		c.Next()
	}
}

// WalletFrom returns the wallet stored by RequireConnected.
func WalletFrom(c *gin.Context) (walletsession.Wallet, bool) {
	v, ok := c.Get(WalletKey)
	if !ok {
		return walletsession.Wallet{}, false
	}
	wallet, ok := v.(walletsession.Wallet)
	return wallet, ok
}
