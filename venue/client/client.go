package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/ports"
	"github.com/perpdash/perpdash/internal/wallet"
	"github.com/perpdash/perpdash/pkg/cache"
	"github.com/perpdash/perpdash/pkg/ratelimit"
	venuetypes "github.com/perpdash/perpdash/venue/types"
)

var log = logrus.WithField("component", "venue_client")

// newRestyClient builds the shared HTTP client. resty picks up proxy
// configuration from the environment (HTTP_PROXY, HTTPS_PROXY).
func newRestyClient(host string) *resty.Client {
	return resty.New().
		SetBaseURL(host).
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// Honor Retry-After on 429 rate limits.
			if resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})
}

// Connector opens authenticated gateway sessions. One Connector can open
// any number of sessions; each Connect returns an independent handle.
type Connector struct {
	endpoint   string
	wsEndpoint string
}

// NewConnector creates a session factory for the given gateway endpoints.
// wsEndpoint may be empty; the session then runs without the liveness feed.
func NewConnector(endpoint, wsEndpoint string) *Connector {
	return &Connector{endpoint: endpoint, wsEndpoint: wsEndpoint}
}

type challengeResponse struct {
	Challenge string `json:"challenge"` // base64 payload to sign
}

type sessionResponse struct {
	Token string `json:"token"`
}

// Connect performs the challenge-response handshake: fetch a challenge,
// sign it with the wallet capability, exchange the signature for a
// session token. The wallet never leaves the process.
func (c *Connector) Connect(ctx context.Context, w wallet.Capability) (ports.VenueClient, error) {
	if !w.Ready() {
		return nil, wallet.ErrNotReady
	}
	hc := newRestyClient(c.endpoint)

	var ch challengeResponse
	resp, err := hc.R().
		SetContext(ctx).
		SetQueryParam("authority", w.PublicKey.String()).
		SetResult(&ch).
		Get("/v2/auth/challenge")
	if err != nil {
		return nil, errors.Wrap(err, "fetch auth challenge")
	}
	if !resp.IsSuccess() {
		return nil, errors.Errorf("auth challenge: %s: %s", resp.Status(), resp.Body())
	}

	payload, err := base64.StdEncoding.DecodeString(ch.Challenge)
	if err != nil {
		return nil, errors.Wrap(err, "decode auth challenge")
	}
	signed, err := w.SignTransaction(&venuetypes.Transaction{Message: payload})
	if err != nil {
		return nil, errors.Wrap(err, "sign auth challenge")
	}
	if !signed.Signed() {
		return nil, errors.New("wallet returned unsigned challenge")
	}

	var sess sessionResponse
	resp, err = hc.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"authority": w.PublicKey.String(),
			"challenge": ch.Challenge,
			"signature": signed.FirstSignature().String(),
		}).
		SetResult(&sess).
		Post("/v2/auth/session")
	if err != nil {
		return nil, errors.Wrap(err, "open gateway session")
	}
	if !resp.IsSuccess() {
		return nil, errors.Errorf("open gateway session: %s: %s", resp.Status(), resp.Body())
	}
	hc.SetAuthToken(sess.Token)

	cl := &Client{
		http:      hc,
		wallet:    w,
		authority: w.PublicKey,
		meta:      cache.NewMarketMetaCache(),
		limiter:   ratelimit.NewTokenBucket(20, 10),
		wsDone:    make(chan struct{}),
	}
	if c.wsEndpoint != "" {
		if err := cl.watchSession(c.wsEndpoint, sess.Token); err != nil {
			// The session works without the feed; closure is then only
			// discovered on the next failing request.
			log.Warnf("session liveness feed unavailable: %v", err)
		}
	}
	return cl, nil
}

// Client is one authenticated gateway session. Safe for concurrent use.
// All fixed-point integer amounts use the venue encoding (1e6 prices,
// 1e9 perp base amounts, spot decimals per market).
type Client struct {
	http      *resty.Client
	wallet    wallet.Capability
	authority solana.PublicKey
	meta      *cache.MarketMetaCache
	limiter   *ratelimit.TokenBucket

	closed   atomic.Bool
	teardown sync.Once
	wsDone   chan struct{}
}

// acquire gates every request: dead sessions fail fast, live ones pass
// through the client-side rate limiter before hitting the gateway.
func (c *Client) acquire(ctx context.Context) error {
	if c.closed.Load() {
		return ports.ErrSessionClosed
	}
	return c.limiter.Wait(ctx)
}

// checkResp normalizes transport and HTTP-level failures. A 401 means the
// gateway dropped our session token; the handle is dead from then on.
func (c *Client) checkResp(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errors.Wrap(err, op)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		c.closed.Store(true)
		return ports.ErrSessionClosed
	}
	if !resp.IsSuccess() {
		return errors.Errorf("%s: %s: %s", op, resp.Status(), resp.Body())
	}
	return nil
}

// GetSubAccount fetches a sub-account snapshot for the session authority.
func (c *Client) GetSubAccount(ctx context.Context, id domain.SubAccountID) (*domain.SubAccountSnapshot, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	var wire venuetypes.WireSubAccount
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&wire).
		Get(fmt.Sprintf("/v2/subAccounts/%s/%d", c.authority, id))
	if resp != nil && resp.StatusCode() == http.StatusNotFound {
		return nil, ports.ErrAccountNotFound
	}
	if err := c.checkResp(resp, err, "get sub-account"); err != nil {
		return nil, err
	}
	return decodeSubAccount(&wire)
}

// InitializeSubAccount creates the sub-account on chain.
func (c *Client) InitializeSubAccount(ctx context.Context, id domain.SubAccountID, label string) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	return c.signAndSend(ctx, "/v2/subAccounts", map[string]any{
		"subAccountId": uint8(id),
		"name":         label,
	})
}

// GetMarket fetches market metadata. Metadata is immutable per market, so
// results feed a long-TTL cache consulted by precision lookups.
func (c *Client) GetMarket(ctx context.Context, id domain.MarketID) (*domain.MarketSnapshot, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	if meta, ok := c.meta.Get(uint16(id)); ok {
		return marketFromMeta(meta), nil
	}

	var wire venuetypes.WireMarket
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&wire).
		Get(fmt.Sprintf("/v2/markets/%d", id))
	if err := c.checkResp(resp, err, "get market"); err != nil {
		return nil, err
	}

	meta := cache.MarketMeta{
		MarketIndex:  wire.MarketIndex,
		Symbol:       wire.Symbol,
		SpotDecimals: wire.SpotDecimals,
		IsPerp:       wire.IsPerp,
	}
	c.meta.Set(meta)
	return marketFromMeta(meta), nil
}

// GetOraclePrice fetches the live oracle price, converted to human units.
func (c *Client) GetOraclePrice(ctx context.Context, id domain.MarketID) (decimal.Decimal, error) {
	if err := c.acquire(ctx); err != nil {
		return decimal.Zero, err
	}
	var wire venuetypes.WireOraclePrice
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&wire).
		Get(fmt.Sprintf("/v2/oracle/%d", id))
	if err := c.checkResp(resp, err, "get oracle price"); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(wire.Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse oracle price %q", wire.Price)
	}
	return price.Shift(-venuetypes.PricePrecisionExp), nil
}

// AssociatedTokenAccount resolves the wallet's token account for a market.
func (c *Client) AssociatedTokenAccount(ctx context.Context, id domain.MarketID) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	var out struct {
		Address string `json:"address"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("authority", c.authority.String()).
		SetResult(&out).
		Get(fmt.Sprintf("/v2/tokenAccounts/%d", id))
	if err := c.checkResp(resp, err, "resolve token account"); err != nil {
		return "", err
	}
	return out.Address, nil
}

// Deposit moves collateral from the token account into the sub-account.
func (c *Client) Deposit(ctx context.Context, nativeAmount *big.Int, market domain.MarketID, sub domain.SubAccountID, tokenAccount string) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	return c.signAndSend(ctx, "/v2/deposit", map[string]any{
		"amount":       nativeAmount.String(),
		"marketIndex":  uint16(market),
		"subAccountId": uint8(sub),
		"tokenAccount": tokenAccount,
	})
}

// Withdraw moves collateral back out to the token account.
func (c *Client) Withdraw(ctx context.Context, nativeAmount *big.Int, market domain.MarketID, tokenAccount string) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	return c.signAndSend(ctx, "/v2/withdraw", map[string]any{
		"amount":       nativeAmount.String(),
		"marketIndex":  uint16(market),
		"tokenAccount": tokenAccount,
	})
}

// SubmitOrder places a perp order and returns the venue's acknowledgement.
func (c *Client) SubmitOrder(ctx context.Context, params *venuetypes.OrderParams) (*venuetypes.OrderResult, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	sig, err := c.signAndSend(ctx, "/v2/orders", params)
	if err != nil {
		return nil, err
	}

	// The order id is assigned on chain; the gateway exposes it via the
	// confirmation lookup keyed by transaction signature.
	var ack venuetypes.OrderResult
	resp, rerr := c.http.R().
		SetContext(ctx).
		SetResult(&ack).
		Get("/v2/orders/byTx/" + sig)
	if cerr := c.checkResp(resp, rerr, "confirm order"); cerr != nil {
		log.Warnf("order confirmation lookup failed, tx=%s: %v", sig, cerr)
		return &venuetypes.OrderResult{TxSignature: sig}, nil
	}
	ack.TxSignature = sig
	return &ack, nil
}

type buildTxResponse struct {
	Transaction string `json:"transaction"` // base64 unsigned message
}

type sendTxResponse struct {
	Signature string `json:"signature"`
}

// signAndSend runs the gateway's build/sign/send round trip: the gateway
// assembles an unsigned transaction for the request, the wallet signs the
// message bytes locally, the signed envelope goes back for submission.
func (c *Client) signAndSend(ctx context.Context, buildPath string, body any) (string, error) {
	var build buildTxResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&build).
		Post(buildPath)
	if err := c.checkResp(resp, err, "build transaction"); err != nil {
		return "", err
	}

	msg, err := base64.StdEncoding.DecodeString(build.Transaction)
	if err != nil {
		return "", errors.Wrap(err, "decode unsigned transaction")
	}
	signed, err := c.wallet.SignTransaction(&venuetypes.Transaction{Message: msg})
	if err != nil {
		return "", errors.Wrap(err, "sign transaction")
	}
	if !signed.Signed() {
		return "", errors.New("wallet returned unsigned transaction")
	}

	var sent sendTxResponse
	resp, err = c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"transaction": build.Transaction,
			"signature":   signed.FirstSignature().String(),
		}).
		SetResult(&sent).
		Post("/v2/tx")
	if err := c.checkResp(resp, err, "send transaction"); err != nil {
		return "", err
	}
	return sent.Signature, nil
}

// Authority returns the wallet public key this session belongs to.
func (c *Client) Authority() solana.PublicKey {
	return c.authority
}

// Close tears down the session. Idempotent, and still releases the event
// feed when the closed flag was already set by a 401 or a gateway event.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.teardown.Do(func() {
		close(c.wsDone)
		c.meta.Clear()
	})
	return nil
}

func marketFromMeta(meta cache.MarketMeta) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		MarketID:     domain.MarketID(meta.MarketIndex),
		Symbol:       meta.Symbol,
		SpotDecimals: meta.SpotDecimals,
		IsPerp:       meta.IsPerp,
	}
}
