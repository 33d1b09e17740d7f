package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"ar-scan-go/internal/bootstrap"
)

func main() {
	fs := ff.NewFlagSet("ar-scan")
	var (
		configPath = fs.StringLong("config", "", "config file (default .config.yaml or config.yaml)")
		imagePath  = fs.StringLong("image", "", "image to scan, overrides capture.image_path")
		serve      = fs.BoolLong("serve", "run the HTTP and websocket server instead of a single scan")
		noDotEnv   = fs.BoolLong("no-dotenv", "do not load .env")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("ARSCAN"),
	); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("[%s] [INFO] [BOOT] starting ar-scan...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	err := bootstrap.Run(context.Background(), bootstrap.Options{
		ConfigPath: *configPath,
		ImagePath:  *imagePath,
		DotEnv:     !*noDotEnv,
		Serve:      *serve,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ar-scan failed: %v\n", err)
		os.Exit(1)
	}
}
