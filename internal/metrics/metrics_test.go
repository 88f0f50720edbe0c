package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCallLabelsResult(t *testing.T) {
	before := testutil.CollectAndCount(externalCallDuration)

	err := ObserveCall("test_call_ok", func() error { return nil })
	require.NoError(t, err)

	boom := errors.New("boom")
	err = ObserveCall("test_call_err", func() error { return boom })
	require.ErrorIs(t, err, boom)

	require.Equal(t, before+2, testutil.CollectAndCount(externalCallDuration))
}

func TestObserveTransfer(t *testing.T) {
	ObserveTransfer("test_outcome")
	ObserveTransfer("test_outcome")
	require.Equal(t, float64(2), testutil.ToFloat64(transfersTotal.WithLabelValues("test_outcome")))
}
