//go:build !cgo
// +build !cgo

package refpanel

import (
	"github.com/carbocation/bgen"
)

func openBGI(path string) (*bgen.BGIIndex, error) {
	return bgen.OpenBGI(path)
}
