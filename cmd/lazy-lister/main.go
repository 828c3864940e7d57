// @title Lazy Lister API
// @version 1.0
// @description Photo-to-listing relay: upload an item photo, get back a sales caption.
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lazy-lister/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [Bootstrap] starting lazy-lister...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "lazy-lister failed: %v\n", err)
		os.Exit(1)
	}
}
