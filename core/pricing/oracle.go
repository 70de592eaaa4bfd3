package pricing

import (
	"errors"
	"math"
	"math/big"
	"strconv"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/core/types"
	"shopchain/native/common"
)

// PriceStatus captures the health classification assigned to an oracle quote.
type PriceStatus string

const (
	// PriceStatusOK indicates the quote passed all configured guardrails.
	PriceStatusOK PriceStatus = "ok"
	// PriceStatusStale signals the quote exceeded the configured freshness window.
	PriceStatusStale PriceStatus = "stale"
	// PriceStatusDeviant indicates the quote moved further from the previous
	// observation than the configured threshold.
	PriceStatusDeviant PriceStatus = "deviant"
)

// DefaultHistoryLimit bounds the number of observations kept in state.
const DefaultHistoryLimit = 256

var ErrStalePrice = errors.New("pricing: stale price")

var (
	historyCountKey  = []byte("oracle/history/n")
	historyEntryBase = "oracle/history/"
)

// Store is the state surface used by the oracle.
type Store interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr []byte) bool
	AppendEvent(*types.Event)
}

// Guard configures the freshness and deviation checks.
type Guard struct {
	MaxAgeSeconds   uint64
	MaxDeviationBps uint32
	HistoryLimit    uint64
}

// Observation is one price pushed by an updater.
type Observation struct {
	Price      *big.Int
	ObservedAt uint64
	RecordedAt uint64
	Updater    ethcommon.Address
}

// Oracle keeps the token/USD price history in state. Prices are pushed by
// holders of the oracle role; nothing is fetched from outside.
type Oracle struct {
	st    Store
	guard Guard
	nowFn func() time.Time
}

func NewOracle(st Store, guard Guard) *Oracle {
	if guard.HistoryLimit == 0 {
		guard.HistoryLimit = DefaultHistoryLimit
	}
	return &Oracle{st: st, guard: guard, nowFn: time.Now}
}

// SetNowFunc overrides the clock used for staleness checks.
func (o *Oracle) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	o.nowFn = now
}

// SetPrice records a new observation. A zero observedAt stamps the current
// time.
func (o *Oracle) SetPrice(caller ethcommon.Address, price *big.Int, observedAt int64) (Observation, error) {
	if err := common.Authorize(o.st, common.RoleOracle, caller); err != nil {
		return Observation{}, err
	}
	if price == nil || price.Sign() <= 0 {
		return Observation{}, common.WithParams(ErrInvalidPrice, "price", priceString(price))
	}
	now := o.nowFn().Unix()
	if observedAt <= 0 {
		observedAt = now
	}
	obs := Observation{
		Price:      new(big.Int).Set(price),
		ObservedAt: uint64(observedAt),
		RecordedAt: uint64(now),
		Updater:    caller,
	}
	n, err := o.count()
	if err != nil {
		return Observation{}, err
	}
	if err := o.st.KVPut(o.entryKey(n), obs); err != nil {
		return Observation{}, err
	}
	if err := o.st.KVPut(historyCountKey, n+1); err != nil {
		return Observation{}, err
	}
	o.st.AppendEvent(events.OraclePriceUpdated{Price: obs.Price, ObservedAt: observedAt, Updater: caller}.Event())
	return obs, nil
}

// Latest returns the most recent observation.
func (o *Oracle) Latest() (Observation, error) {
	n, err := o.count()
	if err != nil {
		return Observation{}, err
	}
	if n == 0 {
		return Observation{}, common.WithParams(ErrInvalidPrice, "price", "0")
	}
	return o.load(n - 1)
}

// GetPrice returns the latest price. Missing and zero prices fail with
// ErrInvalidPrice; prices older than the configured max age fail with
// ErrStalePrice.
func (o *Oracle) GetPrice() (*big.Int, error) {
	q, err := o.Quote(0)
	if err != nil {
		return nil, err
	}
	return q.Price, nil
}

// Quote pins the latest price for conversions at decimals precision.
func (o *Oracle) Quote(decimals uint8) (Quote, error) {
	latest, err := o.Latest()
	if err != nil {
		return Quote{}, err
	}
	if latest.Price == nil || latest.Price.Sign() <= 0 {
		return Quote{}, common.WithParams(ErrInvalidPrice, "price", priceString(latest.Price))
	}
	status, err := o.classify(latest)
	if err != nil {
		return Quote{}, err
	}
	if status == PriceStatusStale {
		age := computeAgeSeconds(time.Unix(int64(latest.ObservedAt), 0), o.nowFn())
		return Quote{}, common.WithParams(ErrStalePrice,
			"ageSeconds", strconv.FormatUint(uint64(age), 10),
			"maxAgeSeconds", strconv.FormatUint(o.guard.MaxAgeSeconds, 10))
	}
	return Quote{Price: new(big.Int).Set(latest.Price), Decimals: decimals, ObservedAt: int64(latest.ObservedAt), Status: status}, nil
}

// Status classifies the latest observation.
func (o *Oracle) Status() (PriceStatus, error) {
	latest, err := o.Latest()
	if err != nil {
		return "", err
	}
	return o.classify(latest)
}

// History returns up to limit observations, newest first.
func (o *Oracle) History(limit uint64) ([]Observation, error) {
	n, err := o.count()
	if err != nil {
		return nil, err
	}
	kept := n
	if kept > o.guard.HistoryLimit {
		kept = o.guard.HistoryLimit
	}
	if limit == 0 || limit > kept {
		limit = kept
	}
	out := make([]Observation, 0, limit)
	for i := uint64(0); i < limit; i++ {
		obs, err := o.load(n - 1 - i)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

func (o *Oracle) classify(latest Observation) (PriceStatus, error) {
	if o.guard.MaxAgeSeconds > 0 {
		age := computeAgeSeconds(time.Unix(int64(latest.ObservedAt), 0), o.nowFn())
		if latest.ObservedAt == 0 || uint64(age) > o.guard.MaxAgeSeconds {
			return PriceStatusStale, nil
		}
	}
	if o.guard.MaxDeviationBps > 0 {
		n, err := o.count()
		if err != nil {
			return "", err
		}
		if n >= 2 {
			prev, err := o.load(n - 2)
			if err != nil {
				return "", err
			}
			if deviatesBeyondThreshold(latest.Price, prev.Price, o.guard.MaxDeviationBps) {
				return PriceStatusDeviant, nil
			}
		}
	}
	return PriceStatusOK, nil
}

func (o *Oracle) count() (uint64, error) {
	var n uint64
	if _, err := o.st.KVGet(historyCountKey, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (o *Oracle) entryKey(idx uint64) []byte {
	return []byte(historyEntryBase + strconv.FormatUint(idx%o.guard.HistoryLimit, 10))
}

func (o *Oracle) load(idx uint64) (Observation, error) {
	var obs Observation
	ok, err := o.st.KVGet(o.entryKey(idx), &obs)
	if err != nil {
		return Observation{}, err
	}
	if !ok {
		return Observation{}, common.WithParams(ErrInvalidPrice, "price", "0")
	}
	return obs, nil
}

func computeAgeSeconds(observed, now time.Time) uint32 {
	if observed.IsZero() || now.IsZero() {
		return math.MaxUint32
	}
	if observed.After(now) {
		return 0
	}
	seconds := now.Sub(observed) / time.Second
	if seconds > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(seconds)
}

func deviatesBeyondThreshold(spot, reference *big.Int, thresholdBps uint32) bool {
	if spot == nil || reference == nil || reference.Sign() <= 0 {
		return false
	}
	diff := new(big.Int).Sub(spot, reference)
	diff.Abs(diff)
	if diff.Sign() == 0 {
		return false
	}
	diff.Mul(diff, big.NewInt(10_000))
	threshold := new(big.Int).Mul(reference, big.NewInt(int64(thresholdBps)))
	return diff.Cmp(threshold) > 0
}
