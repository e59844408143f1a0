// compileinfoprint is imported for the side effect of printing the compileinfo
// to os.Stderr when a colotools binary starts.
package compileinfoprint

import "github.com/carbocation/colotools/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
