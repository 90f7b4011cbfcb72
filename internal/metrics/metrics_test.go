package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveLedgerCall("tx", "ok", 10*time.Millisecond)
	c.ObserveLedgerCall("tx", "ok", 20*time.Millisecond)
	c.ObserveSubmission("NFTokenMint", "tesSUCCESS")
	c.ObserveOffer("create", "ok")
	c.ObserveRecovery("applied")
	c.ObserveHTTP("/api/mint", "POST", 200, time.Second)
	c.DB().IncrementCounter("db_connection_opened", map[string]string{"driver": "sqlite"})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ledgerCalls.WithLabelValues("tx", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("NFTokenMint", "tesSUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.offerTransitions.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recoveries.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("/api/mint", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dbEvents.WithLabelValues("db_connection_opened", "sqlite")))

	_, err = New(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveLedgerCall("tx", "ok", time.Millisecond)
		c.ObserveSubmission("NFTokenMint", "tesSUCCESS")
		c.ObserveOffer("create", "ok")
		c.ObserveRecovery("applied")
		c.ObserveHTTP("/health", "GET", 200, time.Millisecond)
		c.DB().IncrementCounter("x", nil)
		c.DB().RecordDuration("x", time.Millisecond, nil)
	})
}
