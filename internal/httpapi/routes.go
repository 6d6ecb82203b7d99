package httpapi

import (
	"errors"
	"net/http"

	"papertrader/internal/kraken/memorystore"
	"papertrader/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Trader is the ledger surface exposed over HTTP.
type Trader interface {
	Buy(symbol string, quantity decimal.Decimal) (ledger.Receipt, error)
	Sell(symbol string, quantity decimal.Decimal) (ledger.Receipt, error)
	Reset()
	Account() ledger.Account
	History() []ledger.Transaction
}

// QuoteSnapshotter returns the current quotes sorted by symbol.
type QuoteSnapshotter interface {
	Snapshot() []memorystore.Quote
}

// Subscriber hands out price stream subscriptions.
type Subscriber interface {
	Subscribe() (<-chan []byte, func())
}

const DefaultStreamPath = "/topic/prices"

type Routes struct {
	// StreamPath is where the price WebSocket is served.
	StreamPath string

	trader   Trader
	quotes   QuoteSnapshotter
	hub      Subscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewRoutes(trader Trader, quotes QuoteSnapshotter, hub Subscriber, logger *zap.Logger) *Routes {
	return &Routes{
		StreamPath: DefaultStreamPath,
		trader:     trader,
		quotes:     quotes,
		hub:        hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// NewRouter builds a gin engine with every route registered.
func NewRouter(rt *Routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(rt.logger))
	rt.Register(r)
	return r
}

func (rt *Routes) Register(r gin.IRouter) {
	r.GET("/health", rt.health)
	r.GET(rt.StreamPath, rt.stream)

	api := r.Group("/api")
	{
		api.GET("/prices", rt.prices)

		account := api.Group("/account")
		account.GET("", rt.account)
		account.POST("/buy", rt.buy)
		account.POST("/sell", rt.sell)
		account.POST("/reset", rt.reset)
		account.GET("/history", rt.history)
	}
}

type accountView struct {
	Balance  string            `json:"balance"`
	Holdings map[string]string `json:"holdings"`
}

func (rt *Routes) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (rt *Routes) prices(c *gin.Context) {
	c.JSON(http.StatusOK, rt.quotes.Snapshot())
}

func (rt *Routes) account(c *gin.Context) {
	acct := rt.trader.Account()
	view := accountView{
		Balance:  acct.Balance.StringFixed(ledger.MoneyPlaces),
		Holdings: make(map[string]string, len(acct.Holdings)),
	}
	for sym, qty := range acct.Holdings {
		view.Holdings[sym] = qty.String()
	}
	c.JSON(http.StatusOK, view)
}

func (rt *Routes) buy(c *gin.Context) {
	rt.order(c, rt.trader.Buy)
}

func (rt *Routes) sell(c *gin.Context) {
	rt.order(c, rt.trader.Sell)
}

func (rt *Routes) order(c *gin.Context, place func(string, decimal.Decimal) (ledger.Receipt, error)) {
	symbol := c.Query("symbol")
	quantity, err := ledger.ParseQuantity(c.Query("quantity"))
	if err != nil {
		rt.fail(c, err)
		return
	}

	receipt, err := place(symbol, quantity)
	if err != nil {
		rt.fail(c, err)
		return
	}

	rt.logger.Info("order executed",
		zap.String("id", receipt.Transaction.ID.String()),
		zap.Stringer("side", receipt.Transaction.Side),
		zap.String("symbol", symbol),
		zap.String("quantity", quantity.String()),
		zap.String("total", receipt.Transaction.Total.StringFixed(ledger.MoneyPlaces)))
	c.JSON(http.StatusOK, gin.H{"message": receipt.Message})
}

func (rt *Routes) reset(c *gin.Context) {
	rt.trader.Reset()
	rt.logger.Info("account reset")
	c.JSON(http.StatusOK, gin.H{"message": "Account is reset!"})
}

func (rt *Routes) history(c *gin.Context) {
	c.JSON(http.StatusOK, rt.trader.History())
}

func (rt *Routes) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		rt.logger.Error("order failed", zap.Error(err))
	} else {
		rt.logger.Debug("order rejected", zap.String("kind", kind), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

// classify maps ledger rejections to an HTTP status and a stable kind label.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidOrder):
		return http.StatusBadRequest, "invalid_order"
	case errors.Is(err, ledger.ErrPriceUnavailable):
		return http.StatusServiceUnavailable, "price_unavailable"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, ledger.ErrInsufficientHoldings):
		return http.StatusConflict, "insufficient_holdings"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
