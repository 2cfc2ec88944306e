package abi

import "errors"

var ErrNoABI = errors.New("no ABI in contract file")
