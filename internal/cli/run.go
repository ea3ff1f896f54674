package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	driveragent "courier-driver/cmd/driver_agent"
	"courier-driver/internal/software/location"
)

func NewRunCommand() *cobra.Command {
	var (
		opts       driveragent.Options
		route      string
		permission string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the headless driver agent",
		Args:  cobra.NoArgs,
		Example: `  courier-driver run --email=driver@example.com --online
  courier-driver run --config=./config/config.yaml --route="48.86,2.32;48.87,2.33" --tick=2s`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			points, err := ParseRoute(route)
			if err != nil {
				return err
			}
			opts.Route = points
			switch p := location.Permission(permission); p {
			case location.PermissionGranted, location.PermissionDenied, location.PermissionPrompt:
				opts.LocationPermission = p
			default:
				return fmt.Errorf("--location-permission must be granted, denied or prompt, got %q", permission)
			}
			if opts.Password == "" {
				opts.Password = os.Getenv("COURIER_PASSWORD")
			}
			return driveragent.Run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "./config/config.yaml", "Path to the YAML config")
	cmd.Flags().StringVar(&opts.Email, "email", "", "Sign in with this account when no session is saved")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Account password (default $COURIER_PASSWORD)")
	cmd.Flags().BoolVar(&opts.GoOnline, "online", false, "Go online after sign-in")
	cmd.Flags().StringVar(&opts.DeliveryID, "delivery", "", "Open this delivery after sign-in")
	cmd.Flags().StringVar(&route, "route", "", "Simulated GPS route as lat,lng;lat,lng")
	cmd.Flags().DurationVar(&opts.Tick, "tick", 5*time.Second, "Interval between simulated fixes")
	cmd.Flags().IntVar(&opts.Steps, "steps", 10, "Simulated fixes per route segment")
	cmd.Flags().StringVar(&permission, "location-permission", string(location.PermissionGranted), "Simulated location permission: granted | denied | prompt")

	return cmd
}
