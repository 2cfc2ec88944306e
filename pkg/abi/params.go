package abi

import (
	"math/big"
	"reflect"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/ethpandaops/callflow/pkg/trace"
)

// toParams pairs unpacked values with their ABI arguments.
func toParams(args gethabi.Arguments, values []any) []trace.Param {
	params := make([]trace.Param, 0, len(values))

	for i, v := range values {
		if i >= len(args) {
			break
		}

		params = append(params, toParam(args[i].Name, args[i].Type, v))
	}

	return params
}

func toParam(name string, typ gethabi.Type, v any) trace.Param {
	p := trace.Param{Name: name, Type: typ.String()}
	rv := reflect.ValueOf(v)

	switch typ.T {
	case gethabi.TupleTy:
		p.Type = "tuple"
		p.Components = make([]trace.Param, 0, len(typ.TupleElems))

		for i, elem := range typ.TupleElems {
			var field any
			if i < rv.NumField() {
				field = rv.Field(i).Interface()
			}

			p.Components = append(p.Components, toParam(typ.TupleRawNames[i], *elem, field))
		}
	case gethabi.SliceTy, gethabi.ArrayTy:
		p.Components = make([]trace.Param, 0, rv.Len())

		for i := 0; i < rv.Len(); i++ {
			p.Components = append(p.Components, toParam("", *typ.Elem, rv.Index(i).Interface()))
		}
	case gethabi.IntTy, gethabi.UintTy:
		p.Value = toBig(rv)
	case gethabi.FixedBytesTy, gethabi.FunctionTy:
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		p.Value = b
	default:
		p.Value = v
	}

	return p
}

// toBig widens the native integer types go-ethereum uses for sizes up to 64 bits.
func toBig(rv reflect.Value) *big.Int {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint())
	default:
		if b, ok := rv.Interface().(*big.Int); ok {
			return b
		}

		return new(big.Int)
	}
}
