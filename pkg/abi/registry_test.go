package abi

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/trace"
)

const tokenABI = `[
	{"type":"constructor","inputs":[{"name":"name","type":"string"},{"name":"decimals","type":"uint8"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"swap","stateMutability":"nonpayable",
	 "inputs":[{"name":"order","type":"tuple","components":[
		{"name":"token","type":"address"},{"name":"amounts","type":"uint256[]"}]}],
	 "outputs":[{"name":"out","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}]}
]`

const proxyABI = `[
	{"type":"function","name":"admin","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

var (
	proxyAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	userAddr  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func mustParse(t *testing.T, raw string) *gethabi.ABI {
	t.Helper()

	parsed, _, err := Parse([]byte(raw))
	require.NoError(t, err)

	return parsed
}

func newTestRegistry(t *testing.T) (*Registry, *gethabi.ABI) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	registry, err := NewRegistry(log)
	require.NoError(t, err)

	token := mustParse(t, tokenABI)

	registry.Register(&Contract{Address: tokenAddr, Name: "Token", ABI: token, Bytecode: []byte{0x60, 0x80}})
	registry.Register(&Contract{Address: proxyAddr, Name: "Proxy", ABI: mustParse(t, proxyABI)})

	return registry, token
}

func callTrace(to common.Address, input []byte) *trace.Trace {
	tr := &trace.Trace{Type: trace.Call, From: userAddr, To: to, Inputs: input}
	if len(input) >= 4 {
		tr.FuncSelector = input[:4]
	}

	return tr
}

func TestRegistry_DecodeCall(t *testing.T) {
	registry, token := newTestRegistry(t)

	input, err := token.Pack("transfer", userAddr, big.NewInt(1234))
	require.NoError(t, err)

	output, err := token.Methods["transfer"].Outputs.Pack(true)
	require.NoError(t, err)

	tr := callTrace(tokenAddr, input)
	tr.Outputs = output

	call, err := registry.Decode(tr)
	require.NoError(t, err)
	require.NotNil(t, call)

	assert.Equal(t, "transfer", call.FuncName)
	assert.Equal(t, tokenAddr, call.Contract)
	require.Len(t, call.Inputs, 2)
	assert.Equal(t, trace.Param{Name: "to", Type: "address", Value: userAddr}, call.Inputs[0])
	assert.Equal(t, "uint256", call.Inputs[1].Type)
	assert.Equal(t, 0, big.NewInt(1234).Cmp(call.Inputs[1].Value.(*big.Int)))
	require.Len(t, call.Outputs, 1)
	assert.Equal(t, true, call.Outputs[0].Value)
}

func TestRegistry_DecodeFailedCallSkipsOutputs(t *testing.T) {
	registry, token := newTestRegistry(t)

	input, err := token.Pack("transfer", userAddr, big.NewInt(1))
	require.NoError(t, err)

	msg := "execution reverted"
	tr := callTrace(tokenAddr, input)
	tr.Outputs = []byte{0x08, 0xc3, 0x79, 0xa0}
	tr.Error = &msg

	call, err := registry.Decode(tr)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Nil(t, call.Outputs)
}

func TestRegistry_DecodeTuple(t *testing.T) {
	registry, token := newTestRegistry(t)

	order := struct {
		Token   common.Address
		Amounts []*big.Int
	}{
		Token:   userAddr,
		Amounts: []*big.Int{big.NewInt(1), big.NewInt(2)},
	}

	input, err := token.Pack("swap", order)
	require.NoError(t, err)

	call, err := registry.Decode(callTrace(tokenAddr, input))
	require.NoError(t, err)
	require.NotNil(t, call)
	require.Len(t, call.Inputs, 1)

	param := call.Inputs[0]
	assert.Equal(t, "order", param.Name)
	assert.True(t, param.IsComposite())
	assert.False(t, param.IsArray())
	require.Len(t, param.Components, 2)
	assert.Equal(t, userAddr, param.Components[0].Value)

	amounts := param.Components[1]
	assert.True(t, amounts.IsArray())
	require.Len(t, amounts.Components, 2)
	assert.Equal(t, int64(2), amounts.Components[1].Value.(*big.Int).Int64())
}

func TestRegistry_DecodeProxy(t *testing.T) {
	registry, token := newTestRegistry(t)

	input, err := token.Pack("transfer", userAddr, big.NewInt(1))
	require.NoError(t, err)

	// Unknown until the proxy's implementation is known
	call, err := registry.Decode(callTrace(proxyAddr, input))
	require.NoError(t, err)
	assert.Nil(t, call)

	registry.AddDelegateTargets(map[common.Address]mapset.Set[common.Address]{
		proxyAddr: mapset.NewThreadUnsafeSet(tokenAddr),
	})

	call, err = registry.Decode(callTrace(proxyAddr, input))
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, "transfer", call.FuncName)
	assert.Equal(t, tokenAddr, call.Contract)
}

func TestRegistry_DecodeUnknown(t *testing.T) {
	registry, _ := newTestRegistry(t)

	tests := []struct {
		name string
		tr   *trace.Trace
	}{
		{"unknown selector", callTrace(tokenAddr, []byte{0xde, 0xad, 0xbe, 0xef})},
		{"unregistered contract", callTrace(userAddr, []byte{0xa9, 0x05, 0x9c, 0xbb})},
		{"no selector", callTrace(tokenAddr, nil)},
		{"selfdestruct", &trace.Trace{Type: trace.Selfdestruct, From: tokenAddr, To: userAddr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := registry.Decode(tt.tr)
			require.NoError(t, err)
			assert.Nil(t, call)
		})
	}
}

func TestRegistry_DecodeBadCalldata(t *testing.T) {
	registry, _ := newTestRegistry(t)

	// transfer selector with a truncated argument
	_, err := registry.Decode(callTrace(tokenAddr, []byte{0xa9, 0x05, 0x9c, 0xbb, 0x01}))
	require.Error(t, err)
}

func TestRegistry_DecodeConstructor(t *testing.T) {
	registry, token := newTestRegistry(t)

	args, err := token.Pack("", "Token", uint8(18))
	require.NoError(t, err)

	create := &trace.Trace{Type: trace.Create, From: userAddr, To: tokenAddr, Inputs: append([]byte{0x60, 0x80}, args...)}

	call, err := registry.Decode(create)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, "constructor", call.FuncName)
	require.Len(t, call.Inputs, 2)
	assert.Equal(t, "Token", call.Inputs[0].Value)
	assert.Equal(t, int64(18), call.Inputs[1].Value.(*big.Int).Int64())

	// Without matching creation code the arguments cannot be located
	create.Inputs = append([]byte{0x60, 0x60}, args...)
	call, err = registry.Decode(create)
	require.NoError(t, err)
	assert.Nil(t, call)

	// A constructor without inputs decodes to an empty list
	call, err = registry.Decode(&trace.Trace{Type: trace.Create, From: userAddr, To: proxyAddr, Inputs: []byte{0x60}})
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Empty(t, call.Inputs)
}

func TestRegistry_DecodeLog(t *testing.T) {
	registry, token := newTestRegistry(t)

	ev := token.Events["Transfer"]

	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(7))
	require.NoError(t, err)

	l := execution.Log{
		Address: proxyAddr,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(userAddr.Bytes()),
			common.BytesToHash(tokenAddr.Bytes()),
		},
		Data:  data,
		Index: 3,
	}

	// The proxy's own ABI has no events, so any registered ABI is searched
	decoded, err := registry.DecodeLog(l)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.Equal(t, "Transfer", decoded.Name)
	assert.Equal(t, proxyAddr, decoded.Address)
	assert.Equal(t, uint(3), decoded.Index)
	require.Len(t, decoded.Params, 3)
	assert.Equal(t, userAddr, decoded.Params[0].Value)
	assert.Equal(t, tokenAddr, decoded.Params[1].Value)
	assert.Equal(t, int64(7), decoded.Params[2].Value.(*big.Int).Int64())

	unknown, err := registry.DecodeLog(execution.Log{Address: tokenAddr, Topics: []common.Hash{{0x01}}})
	require.NoError(t, err)
	assert.Nil(t, unknown)

	anonymous, err := registry.DecodeLog(execution.Log{Address: tokenAddr})
	require.NoError(t, err)
	assert.Nil(t, anonymous)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	bare := filepath.Join(dir, "bare.json")
	require.NoError(t, os.WriteFile(bare, []byte(tokenABI), 0o600))

	parsed, bytecode, err := LoadFile(bare)
	require.NoError(t, err)
	assert.Contains(t, parsed.Methods, "transfer")
	assert.Nil(t, bytecode)

	hardhat := filepath.Join(dir, "hardhat.json")
	require.NoError(t, os.WriteFile(hardhat, []byte(`{"abi":`+proxyABI+`,"bytecode":"0x6080"}`), 0o600))

	parsed, bytecode, err = LoadFile(hardhat)
	require.NoError(t, err)
	assert.Contains(t, parsed.Methods, "admin")
	assert.Equal(t, []byte{0x60, 0x80}, bytecode)

	foundry := filepath.Join(dir, "foundry.json")
	require.NoError(t, os.WriteFile(foundry, []byte(`{"abi":`+proxyABI+`,"bytecode":{"object":"0x6060"}}`), 0o600))

	_, bytecode, err = LoadFile(foundry)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x60}, bytecode)

	missing := filepath.Join(dir, "missing.json")
	require.NoError(t, os.WriteFile(missing, []byte(`{"bytecode":"0x60"}`), 0o600))

	_, _, err = LoadFile(missing)
	require.ErrorIs(t, err, ErrNoABI)

	_, _, err = LoadFile(filepath.Join(dir, "nope.json"))
	require.Error(t, err)
}
