package main

import (
	"os"

	"github.com/babelcloud/gbox/packages/avtool/cmd"
	"github.com/babelcloud/gbox/packages/avtool/internal/engine/libav"
	"github.com/babelcloud/gbox/packages/avtool/internal/media"
)

func main() {
	if err := cmd.Execute(func() media.Engine { return libav.New() }); err != nil {
		os.Exit(1)
	}
}
