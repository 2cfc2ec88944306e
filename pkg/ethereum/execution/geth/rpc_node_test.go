//go:build !embedded

package geth

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
)

const nestedTrace = `{"type":"CALL","from":"0x0000000000000000000000000000000000001111","to":"0x0000000000000000000000000000000000002222","gas":"0x5208","gasUsed":"0x4d2","input":"0x","calls":[]}`

const flatTrace = `[{"action":{"callType":"call","from":"0x0000000000000000000000000000000000001111","to":"0x0000000000000000000000000000000000002222","gas":"0x5208","input":"0x","value":"0x0"},"result":{"gasUsed":"0x4d2","output":"0x"},"subtraces":0,"traceAddress":[],"type":"call"}]`

type web3API struct {
	version string
}

func (w *web3API) ClientVersion() string {
	return w.version
}

type debugAPI struct {
	tracer string
}

func (d *debugAPI) TraceTransaction(_ common.Hash, cfg map[string]any) (json.RawMessage, error) {
	d.tracer, _ = cfg["tracer"].(string)

	return json.RawMessage(nestedTrace), nil
}

type traceAPI struct{}

func (traceAPI) Transaction(_ common.Hash) (json.RawMessage, error) {
	return json.RawMessage(flatTrace), nil
}

func newTestServer(t *testing.T, version string) (*httptest.Server, *debugAPI) {
	t.Helper()

	debug := &debugAPI{}
	server := rpc.NewServer()

	require.NoError(t, server.RegisterName("web3", &web3API{version: version}))
	require.NoError(t, server.RegisterName("debug", debug))
	require.NoError(t, server.RegisterName("trace", traceAPI{}))

	ts := httptest.NewServer(server)

	t.Cleanup(func() {
		ts.Close()
		server.Stop()
	})

	return ts, debug
}

func newTestNode(t *testing.T, addr string, client execution.ClientType) *RPCNode {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	node := NewRPCNode(log, &execution.Config{
		Name:            "test",
		NodeAddress:     addr,
		Client:          client,
		Timeout:         5 * time.Second,
		MaxRetryElapsed: time.Second,
	})

	require.NoError(t, node.Start(context.Background()))

	t.Cleanup(func() {
		_ = node.Stop(context.Background())
	})

	return node
}

func TestRPCNode_DetectsGethAndUsesCallTracer(t *testing.T) {
	ts, debug := newTestServer(t, "Geth/v1.15.11-stable/linux-amd64/go1.24.1")
	node := newTestNode(t, ts.URL, "")

	assert.Equal(t, execution.ClientGeth, node.ClientType())

	shape, raw, err := node.Trace(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Equal(t, execution.ShapeNested, shape)
	assert.JSONEq(t, nestedTrace, string(raw))
	assert.Equal(t, "callTracer", debug.tracer)
}

func TestRPCNode_ConfiguredFlatClient(t *testing.T) {
	ts, _ := newTestServer(t, "Geth/v1.15.11")
	node := newTestNode(t, ts.URL, execution.ClientErigon)

	shape, raw, err := node.Trace(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Equal(t, execution.ShapeFlat, shape)
	assert.JSONEq(t, flatTrace, string(raw))
}

func TestParseClientVersion(t *testing.T) {
	tests := []struct {
		version  string
		expected execution.ClientType
	}{
		{"Geth/v1.15.11-stable/linux-amd64/go1.24.1", execution.ClientGeth},
		{"erigon/3.0.0/linux-amd64/go1.23", execution.ClientErigon},
		{"Nethermind/v1.31.0+2cf5bdc8/linux-x64/dotnet9.0.2", execution.ClientNethermind},
		{"reth/v1.3.0-6fd4d5e/x86_64-unknown-linux-gnu", execution.ClientReth},
		{"besu/v25.2.0/linux-x86_64/openjdk-java-21", execution.ClientBesu},
		{"anvil/v1.0.0", execution.ClientAnvil},
		{"HardhatNetwork/2.22.0/@ethereumjs/vm/6.0.0", execution.ClientHardhat},
		{"OpenEthereum//v3.3.5-stable/x86_64-linux-musl/rustc1.59.0", execution.ClientOpenEthereum},
		{"something-else", execution.ClientErigon},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseClientVersion(tt.version))
		})
	}
}
