package main

import (
	"reflect"
	"strconv"

	"github.com/alecthomas/kong"
)

// numMapper parses integer arguments in a fixed base, so addresses and
// registers can be given the way datasheets write them: hex, without a
// 0x prefix.
type numMapper struct {
	base int
}

func (m numMapper) Decode(ctx *kong.DecodeContext, target reflect.Value) error {
	var raw string
	if err := ctx.Scan.PopValueInto("number", &raw); err != nil {
		return err
	}
	v, err := strconv.ParseInt(raw, m.base, 64)
	if err != nil {
		return err
	}
	target.SetInt(v)
	return nil
}
