package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-velo/internal/server"
	"github.com/joeblew999/plat-velo/internal/service"
)

// Options defines all CLI flags and env vars for the velo server.
// Flags: --host, --port, --data-dir, --web-dir, --session-ttl, --frame-interval, --hit-tolerance
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, ...
type Options struct {
	Host          string        `doc:"Host to bind to" default:"0.0.0.0"`
	Port          int           `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir       string        `doc:"Directory with sources/, counters/ and styles.yaml" default:".data"`
	WebDir        string        `doc:"Path to web/ directory" default:"web"`
	SessionTTL    time.Duration `doc:"Idle time before a map session is closed" default:"30m"`
	FrameInterval time.Duration `doc:"Animation frame interval" default:"16ms"`
	HitTolerance  int           `doc:"Pointer hit tolerance in pixels" default:"5"`
}

// Nantes, where the network lives.
var defaultCenter = orb.Point{-1.5536, 47.2184}

func newServer(opts *Options) *server.Server {
	srv, err := server.New(server.Config{
		Host:          opts.Host,
		Port:          fmt.Sprintf("%d", opts.Port),
		DataDir:       opts.DataDir,
		WebDir:        opts.WebDir,
		SessionTTL:    opts.SessionTTL,
		FrameInterval: opts.FrameInterval,
		HitTolerance:  float64(opts.HitTolerance),
		Center:        defaultCenter,
		Zoom:          12,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func output(cmd *cobra.Command, v any) {
	useYAML, _ := cmd.Flags().GetBool("yaml")

	var out []byte
	var err error
	if useYAML {
		out, err = yaml.Marshal(v)
	} else {
		out, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-velo API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Session: %s idle timeout\n", opts.SessionTTL)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			srv.Close()
		})
	})

	cli.Root().Use = "velo"
	cli.Root().Short = "Cycling network map composer and live map sessions"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			output(cmd, srv.OpenAPI())
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// style subcommand: compose the map style for a filter without serving
	styleCmd := &cobra.Command{
		Use:   "style",
		Short: "Print the composed map style (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()

			var filter service.FeatureFilter
			filter.Status, _ = cmd.Flags().GetStringSlice("status")
			filter.Line, _ = cmd.Flags().GetIntSlice("line")

			sess, err := srv.Services().Sessions.Create(context.Background(), filter)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error composing style: %v\n", err)
				os.Exit(1)
			}
			output(cmd, sess.Doc.Style())
		}),
	}
	styleCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	styleCmd.Flags().StringSlice("status", nil, "Keep only sections with these statuses")
	styleCmd.Flags().IntSlice("line", nil, "Keep only features of these lines")
	cli.Root().AddCommand(styleCmd)

	cli.Run()
}
