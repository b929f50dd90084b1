package replay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata-archiver/internal/domain"
)

var windowStart = time.Date(2020, 8, 5, 0, 0, 0, 0, time.UTC)

func mustDecode(t *testing.T, line string) *message {
	t.Helper()
	msg, err := decodeLine([]byte(line))
	require.NoError(t, err)
	return msg
}

func TestParseMethod(t *testing.T) {
	assert.Equal(t, MethodBookUpdate, ParseMethod("depth.update"))
	assert.Equal(t, MethodTradesUpdate, ParseMethod("trades.update"))
	assert.Equal(t, MethodUnknown, ParseMethod("ticker.update"))
	assert.Equal(t, MethodUnknown, ParseMethod(""))
}

func TestIsSnapshot(t *testing.T) {
	cases := []struct {
		params string
		want   bool
	}{
		{`[true, {}]`, true},
		{`[false, {}]`, false},
		{`[1, {}]`, true},
		{`[0, {}]`, false},
		{`[0.5, {}]`, true},
		{`["true", {}]`, true},
		{`["false", {}]`, true},
		{`["yes", {}]`, true},
		{`["", {}]`, false},
		{`[[1], {}]`, true},
		{`[[], {}]`, false},
		{`[{"a": 1}, {}]`, true},
		{`[{}, {}]`, false},
		{`[null, {}]`, false},
		{`[]`, false},
	}

	for _, c := range cases {
		var params []json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(c.params), &params))
		assert.Equal(t, c.want, isSnapshot(params), c.params)
	}
}

func TestDecodeLine_ProtocolError(t *testing.T) {
	_, err := decodeLine([]byte(`{"localTimestamp":"2020-08-05T00:00:00Z","message":"Replay limit exceeded"}`))
	require.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "Replay limit exceeded")
}

func TestDecodeLine_Malformed(t *testing.T) {
	for _, line := range []string{
		`not json`,
		`{"localTimestamp":"2020-08-05T00:00:00Z"}`,
		`{"localTimestamp":"2020-08-05T00:00:00Z","message":null}`,
		`{"localTimestamp":"2020-08-05T00:00:00Z","message":[1,2]}`,
	} {
		_, err := decodeLine([]byte(line))
		assert.ErrorIs(t, err, ErrMalformedLine, line)
	}
}

func TestDecodeLine_InjectsLocalTimestamp(t *testing.T) {
	msg := mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:01.5Z","message":{"method":"depth.update","params":[false,{}]}}`)
	assert.Equal(t, "2020-08-05T00:00:01.5Z", msg.localTimestamp)
	assert.Equal(t, "depth.update", msg.Method)
	assert.Len(t, msg.Params, 2)
}

func TestDispatcher_FirstBookSnapshotThenDeltas(t *testing.T) {
	d := newDispatcher("JNT_USDT", windowStart)

	events, err := d.dispatch(mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:01.123456Z","message":{"method":"depth.update","params":[true,{"bids":[["0.0559","50"],["0.0558","20.5"]],"asks":[["0.0561","100"]]},"JNT_USDT"]}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventSnapshot, events[0].Kind)

	snap := events[0].Snapshot
	require.Len(t, snap.Bids, 2)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, domain.Price("0.05590000"), snap.Bids[0].Price)
	assert.Equal(t, "20.5", snap.Bids[1].Size.String())
	assert.Equal(t, domain.SideAsk, snap.Asks[0].Side)
	assert.Equal(t, int64(1596585601123456), snap.Asks[0].Timestamp)
	assert.Equal(t, time.UTC, snap.Asks[0].Date.Location())

	// A later snapshot-flagged message is processed as deltas.
	events, err = d.dispatch(mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:02Z","message":{"method":"depth.update","params":[true,{"bids":[["0.0559","0"]],"asks":[["0.0562","7"]]}]}}`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventDelta, events[0].Kind)
	assert.Equal(t, domain.SideBid, events[0].Delta.Side)
	assert.True(t, events[0].Delta.Size.IsZero())
	assert.Equal(t, domain.SideAsk, events[1].Delta.Side)
}

func TestDispatcher_FirstBookDeltaNeverSnapshots(t *testing.T) {
	d := newDispatcher("JNT_USDT", windowStart)

	events, err := d.dispatch(mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:01Z","message":{"method":"depth.update","params":[false,{"asks":[["0.0561","1"]]}]}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDelta, events[0].Kind)

	events, err = d.dispatch(mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:02Z","message":{"method":"depth.update","params":[true,{"bids":[["0.0559","3"]],"asks":[]}]}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDelta, events[0].Kind)
}

func TestDispatcher_DeltaWithoutSides(t *testing.T) {
	d := newDispatcher("JNT_USDT", windowStart)
	d.state = stateStreaming

	events, err := d.dispatch(mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:01Z","message":{"method":"depth.update","params":[false,{}]}}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDispatcher_IgnoresUnknownMethods(t *testing.T) {
	d := newDispatcher("JNT_USDT", windowStart)

	events, err := d.dispatch(mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:01Z","message":{"method":"ticker.update","params":["JNT_USDT",{}]}}`))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, stateAwaitingFirstBook, d.state)
}

func TestDispatcher_TradesBeforeWindowDropped(t *testing.T) {
	d := newDispatcher("JNT_USDT", windowStart)

	events, err := d.dispatch(mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:04Z","message":{"method":"trades.update","params":["JNT_USDT",[
		{"id":1,"time":1596585599.999,"price":"0.056","amount":"1","type":"buy"},
		{"id":2,"time":1596585600,"price":"0.0561","amount":"2","type":"sell"},
		{"id":"3","time":1596585603.25,"price":"0.0562123456789","amount":"3.5","type":"buy"}
	]]}}`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, d.tradesDropped)

	first := events[0].Trade
	assert.Equal(t, "2", first.ID)
	assert.Equal(t, domain.SideAsk, first.Side)
	assert.Equal(t, windowStart, first.Date)

	second := events[1].Trade
	assert.Equal(t, "3", second.ID)
	assert.Equal(t, domain.Price("0.05621234"), second.Price)
	assert.Equal(t, "3.5", second.Size.String())
	assert.False(t, second.Liquidation)
	assert.Equal(t, "JNT_USDT", second.Symbol)
	assert.Equal(t, int64(1596585603250000), second.Timestamp)
}

func TestDispatcher_TradeUnknownSide(t *testing.T) {
	d := newDispatcher("JNT_USDT", windowStart)

	_, err := d.dispatch(mustDecode(t, `{"localTimestamp":"2020-08-05T00:00:04Z","message":{"method":"trades.update","params":["JNT_USDT",[{"id":9,"time":1596585601,"price":"1","amount":"1","type":"short"}]]}}`))
	assert.ErrorIs(t, err, domain.ErrUnknownSide)
}

func TestDispatcher_MalformedPayloads(t *testing.T) {
	lines := []string{
		`{"localTimestamp":"yesterday","message":{"method":"depth.update","params":[false,{"bids":[["1","1"]]}]}}`,
		`{"localTimestamp":"2020-08-05T00:00:01Z","message":{"method":"depth.update","params":[false]}}`,
		`{"localTimestamp":"2020-08-05T00:00:01Z","message":{"method":"depth.update","params":[false,{"bids":[["1"]]}]}}`,
		`{"localTimestamp":"2020-08-05T00:00:01Z","message":{"method":"depth.update","params":[false,{"bids":[["1","lots"]]}]}}`,
		`{"localTimestamp":"2020-08-05T00:00:01Z","message":{"method":"trades.update","params":["JNT_USDT",{"id":1}]}}`,
	}

	for _, line := range lines {
		d := newDispatcher("JNT_USDT", windowStart)
		d.state = stateStreaming
		_, err := d.dispatch(mustDecode(t, line))
		assert.ErrorIs(t, err, ErrMalformedLine, line)
	}
}
