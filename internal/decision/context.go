package decision

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	contextHistoryCap = 100
	carrierCacheSize  = 256
	customerCacheSize = 256
)

// Event is one observed input in the rolling context window.
type Event struct {
	Type     InputType
	Priority Priority
	At       time.Time
}

// CarrierMetrics is the per-carrier performance snapshot the engine keeps
// warm between decisions.
type CarrierMetrics struct {
	OnTimeRate float64
	Shipments  int
}

// CustomerPreferences carries per-customer routing hints.
type CustomerPreferences struct {
	PreferredCarrier string
	Notes            string
}

// Context is the mutable, process-lifetime decision context: a bounded FIFO
// history plus LRU caches for carrier and customer lookups. All methods are
// safe for concurrent use; callers hold no locks.
type Context struct {
	history   []Event
	carriers  *lru.Cache[string, CarrierMetrics]
	customers *lru.Cache[string, CustomerPreferences]
}

func NewContext() (*Context, error) {
	carriers, err := lru.New[string, CarrierMetrics](carrierCacheSize)
	if err != nil {
		return nil, err
	}
	customers, err := lru.New[string, CustomerPreferences](customerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Context{carriers: carriers, customers: customers}, nil
}

// observe merges one input into the context: the event joins the history
// window (oldest evicted past the cap) and any carrier/customer hints in the
// payload refresh the caches. Callers must hold the engine lock.
func (c *Context) observe(input Input, at time.Time) {
	c.history = append(c.history, Event{Type: input.Type, Priority: input.Priority, At: at})
	if len(c.history) > contextHistoryCap {
		c.history = c.history[len(c.history)-contextHistoryCap:]
	}

	if id, ok := stringField(input.Data, "carrier_id"); ok {
		metrics, _ := c.carriers.Get(id)
		metrics.Shipments++
		if rate, ok := floatField(input.Data, "carrier_on_time_rate"); ok {
			metrics.OnTimeRate = rate
		}
		c.carriers.Add(id, metrics)
	}

	if id, ok := stringField(input.Data, "customer_id"); ok {
		prefs, _ := c.customers.Get(id)
		if preferred, ok := stringField(input.Data, "preferred_carrier"); ok {
			prefs.PreferredCarrier = preferred
		}
		c.customers.Add(id, prefs)
	}
}

// recentOfType counts history events matching the input type. May be zero;
// pattern lookups are best-effort.
func (c *Context) recentOfType(t InputType) int {
	count := 0
	for _, event := range c.history {
		if event.Type == t {
			count++
		}
	}
	return count
}

func (c *Context) historyLen() int { return len(c.history) }

// Carrier returns the cached metrics for a carrier, if present.
func (c *Context) Carrier(id string) (CarrierMetrics, bool) {
	return c.carriers.Get(id)
}

// Customer returns the cached preferences for a customer, if present.
func (c *Context) Customer(id string) (CustomerPreferences, bool) {
	return c.customers.Get(id)
}

func stringField(data map[string]any, key string) (string, bool) {
	if data == nil {
		return "", false
	}
	value, ok := data[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func floatField(data map[string]any, key string) (float64, bool) {
	if data == nil {
		return 0, false
	}
	value, ok := data[key].(float64)
	return value, ok
}
