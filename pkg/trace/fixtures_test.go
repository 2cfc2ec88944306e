package trace

import (
	"github.com/ethereum/go-ethereum/common"
)

var (
	addr1 = common.HexToAddress("0x0000000000000000000000000000000000001111")
	addr2 = common.HexToAddress("0x1111000000000000000000000000000000002222")
	addr3 = common.HexToAddress("0x2222000000000000000000000000000000003333")
	addr4 = common.HexToAddress("0x3333000000000000000000000000000000004444")
	addr5 = common.HexToAddress("0x4444000000000000000000000000000000005555")
	addr6 = common.HexToAddress("0x5555000000000000000000000000000000006666")
)

// nestedFixture is a callTracer response:
//
//	0 CALL         1111 -> 2222
//	1   DELEGATECALL 2222 -> 3333
//	2     CALL         2222 -> 4444 (1 ether)
//	3     STATICCALL   2222 -> 5555
//	4   CALL         2222 -> 4444 (reverted)
//	5     CALL         4444 -> 6666 (no gasUsed)
const nestedFixture = `{
	"type": "CALL",
	"from": "0x0000000000000000000000000000000000001111",
	"to": "0x1111000000000000000000000000000000002222",
	"value": "0x0",
	"gas": "0x7530",
	"gasUsed": "0x4d2",
	"input": "0x12345678",
	"output": "0x",
	"calls": [
		{
			"type": "DELEGATECALL",
			"from": "0x1111000000000000000000000000000000002222",
			"to": "0x2222000000000000000000000000000000003333",
			"gas": "0x100",
			"gasUsed": "0x50",
			"input": "0x12345678",
			"calls": [
				{
					"type": "CALL",
					"from": "0x1111000000000000000000000000000000002222",
					"to": "0x3333000000000000000000000000000000004444",
					"value": "0xde0b6b3a7640000",
					"gas": "0x10",
					"gasUsed": "0x5",
					"input": "0x"
				},
				{
					"type": "STATICCALL",
					"from": "0x1111000000000000000000000000000000002222",
					"to": "0x4444000000000000000000000000000000005555",
					"gas": "0x10",
					"gasUsed": "0x5",
					"input": "0xaabbccdd"
				}
			]
		},
		{
			"type": "CALL",
			"from": "0x1111000000000000000000000000000000002222",
			"to": "0x3333000000000000000000000000000000004444",
			"gas": "0x100",
			"gasUsed": "0x20",
			"input": "0xa9059cbb",
			"error": "execution reverted",
			"revertReason": "nope",
			"calls": [
				{
					"type": "CALL",
					"from": "0x3333000000000000000000000000000000004444",
					"to": "0x5555000000000000000000000000000000006666",
					"gas": "0x10",
					"input": "0x"
				}
			]
		}
	]
}`

// flatFixture is the trace_transaction equivalent of nestedFixture.
const flatFixture = `[
	{
		"action": {"callType": "call", "from": "0x0000000000000000000000000000000000001111", "to": "0x1111000000000000000000000000000000002222", "gas": "0x7530", "input": "0x12345678", "value": "0x0"},
		"result": {"gasUsed": "0x4d2", "output": "0x"},
		"subtraces": 2, "traceAddress": [], "type": "call"
	},
	{
		"action": {"callType": "delegatecall", "from": "0x1111000000000000000000000000000000002222", "to": "0x2222000000000000000000000000000000003333", "gas": "0x100", "input": "0x12345678", "value": "0x0"},
		"result": {"gasUsed": "0x50", "output": "0x"},
		"subtraces": 2, "traceAddress": [0], "type": "call"
	},
	{
		"action": {"callType": "call", "from": "0x1111000000000000000000000000000000002222", "to": "0x3333000000000000000000000000000000004444", "gas": "0x10", "input": "0x", "value": "0xde0b6b3a7640000"},
		"result": {"gasUsed": "0x5", "output": "0x"},
		"subtraces": 0, "traceAddress": [0, 0], "type": "call"
	},
	{
		"action": {"callType": "staticcall", "from": "0x1111000000000000000000000000000000002222", "to": "0x4444000000000000000000000000000000005555", "gas": "0x10", "input": "0xaabbccdd", "value": "0x0"},
		"result": {"gasUsed": "0x5", "output": "0x"},
		"subtraces": 0, "traceAddress": [0, 1], "type": "call"
	},
	{
		"action": {"callType": "call", "from": "0x1111000000000000000000000000000000002222", "to": "0x3333000000000000000000000000000000004444", "gas": "0x100", "input": "0xa9059cbb", "value": "0x0"},
		"result": {"gasUsed": "0x20", "output": "0x"},
		"error": "execution reverted: nope",
		"subtraces": 1, "traceAddress": [1], "type": "call"
	},
	{
		"action": {"callType": "call", "from": "0x3333000000000000000000000000000000004444", "to": "0x5555000000000000000000000000000000006666", "gas": "0x10", "input": "0x", "value": "0x0"},
		"result": null,
		"subtraces": 0, "traceAddress": [1, 0], "type": "call"
	}
]`
