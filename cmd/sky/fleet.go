package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skytrack/internal/domain"
	"skytrack/internal/engine"
	"skytrack/internal/repo"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseFlightStatus(raw string) (domain.FlightStatus, error) {
	s, ok := domain.ParseFlightStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !ok {
		return "", fmt.Errorf("unknown flight status %q", raw)
	}
	return s, nil
}

func planeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plane", Short: "Manage the fleet"}
	cmd.AddCommand(planeListCmd())
	cmd.AddCommand(planeCreateCmd())
	cmd.AddCommand(planeShowCmd())
	cmd.AddCommand(planeUpdateCmd())
	return cmd
}

func planeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List planes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListPlanes(ctx)
				if err != nil {
					return err
				}
				return printPlanes(items)
			})
		},
	}
}

func planeCreateCmd() *cobra.Command {
	var model, registration, status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreatePlane(ctx, engine.PlaneCreateOptions{
					Model:        model,
					Registration: strings.ToUpper(strings.TrimSpace(registration)),
					Status:       domain.PlaneStatus(strings.ToUpper(status)),
					ActorID:      actorID(),
				})
				if err != nil {
					return err
				}
				return printPlanes([]domain.Plane{p})
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "aircraft model")
	cmd.Flags().StringVar(&registration, "registration", "", "registration mark, e.g. LV-SKY1")
	cmd.Flags().StringVar(&status, "status", "", "AVAILABLE (default) or MAINTENANCE")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("registration")
	return cmd
}

func planeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a plane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetPlane(ctx, id)
				if err != nil {
					return err
				}
				return printPlanes([]domain.Plane{p})
			})
		},
	}
}

func planeUpdateCmd() *cobra.Command {
	var model, registration string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change model or registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			opts := engine.PlaneUpdateOptions{
				ID:           id,
				Model:        optionalString(cmd, "model", model),
				Registration: optionalString(cmd, "registration", strings.ToUpper(strings.TrimSpace(registration))),
				ActorID:      actorID(),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdatePlane(ctx, opts)
				if err != nil {
					return err
				}
				return printPlanes([]domain.Plane{p})
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "aircraft model")
	cmd.Flags().StringVar(&registration, "registration", "", "registration mark")
	return cmd
}

func flightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flight",
		Short: "Schedule and operate flights",
	}
	cmd.AddCommand(flightListCmd())
	cmd.AddCommand(flightCreateCmd())
	cmd.AddCommand(flightShowCmd())
	cmd.AddCommand(flightUpdateCmd())
	cmd.AddCommand(flightDeleteCmd())
	cmd.AddCommand(flightCrewCmd())
	return cmd
}

func flightListCmd() *cobra.Command {
	var origin, destination, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flights",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repo.FlightFilter{Origin: origin, Destination: destination}
			if status != "" {
				s, err := parseFlightStatus(status)
				if err != nil {
					return err
				}
				f.Status = s
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListFlights(ctx, f)
				if err != nil {
					return err
				}
				return printFlights(items)
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin filter")
	cmd.Flags().StringVar(&destination, "destination", "", "destination filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func flightCreateCmd() *cobra.Command {
	var code, origin, destination, departure, arrival, status string
	var planeID int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a flight",
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := parseInstant("departure", departure)
			if err != nil {
				return err
			}
			arr, err := parseInstant("arrival", arrival)
			if err != nil {
				return err
			}
			opts := engine.FlightCreateOptions{
				Code:          strings.ToUpper(strings.TrimSpace(code)),
				Origin:        origin,
				Destination:   destination,
				DepartureTime: dep,
				ArrivalTime:   arr,
				ActorID:       actorID(),
			}
			if status != "" {
				if opts.Status, err = parseFlightStatus(status); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("plane") {
				opts.PlaneID = &planeID
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.CreateFlight(ctx, opts)
				if err != nil {
					return err
				}
				return printFlights([]domain.Flight{f})
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "flight code, e.g. SK100")
	cmd.Flags().StringVar(&origin, "origin", "", "origin")
	cmd.Flags().StringVar(&destination, "destination", "", "destination")
	cmd.Flags().StringVar(&departure, "departure", "", "departure time (RFC 3339)")
	cmd.Flags().StringVar(&arrival, "arrival", "", "arrival time (RFC 3339)")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default PROGRAMADO)")
	cmd.Flags().Int64Var(&planeID, "plane", 0, "plane id to bind")
	for _, name := range []string{"code", "origin", "destination", "departure", "arrival"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func flightShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a flight, including deleted ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.GetFlight(ctx, id)
				if err != nil {
					return err
				}
				return printFlights([]domain.Flight{f})
			})
		},
	}
}

func flightUpdateCmd() *cobra.Command {
	var code, origin, destination, departure, arrival, status string
	var planeID int64
	var unbind bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields, status or plane binding",
		Long:  "Only the flags given are changed. --status drives the lifecycle: EN_VUELO needs a bound plane and marks it IN_FLIGHT.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if unbind && cmd.Flags().Changed("plane") {
				return fmt.Errorf("--plane and --unbind-plane are mutually exclusive")
			}
			opts := engine.FlightUpdateOptions{
				ID:          id,
				Origin:      optionalString(cmd, "origin", origin),
				Destination: optionalString(cmd, "destination", destination),
				UnbindPlane: unbind,
				ActorID:     actorID(),
			}
			if cmd.Flags().Changed("code") {
				c := strings.ToUpper(strings.TrimSpace(code))
				opts.Code = &c
			}
			if cmd.Flags().Changed("departure") {
				t, err := parseInstant("departure", departure)
				if err != nil {
					return err
				}
				opts.DepartureTime = &t
			}
			if cmd.Flags().Changed("arrival") {
				t, err := parseInstant("arrival", arrival)
				if err != nil {
					return err
				}
				opts.ArrivalTime = &t
			}
			if cmd.Flags().Changed("status") {
				s, err := parseFlightStatus(status)
				if err != nil {
					return err
				}
				opts.Status = &s
			}
			if cmd.Flags().Changed("plane") {
				opts.PlaneID = &planeID
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.UpdateFlight(ctx, opts)
				if err != nil {
					return err
				}
				return printFlights([]domain.Flight{f})
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "flight code")
	cmd.Flags().StringVar(&origin, "origin", "", "origin")
	cmd.Flags().StringVar(&destination, "destination", "", "destination")
	cmd.Flags().StringVar(&departure, "departure", "", "departure time (RFC 3339)")
	cmd.Flags().StringVar(&arrival, "arrival", "", "arrival time (RFC 3339)")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().Int64Var(&planeID, "plane", 0, "plane id to bind")
	cmd.Flags().BoolVar(&unbind, "unbind-plane", false, "remove the plane binding")
	return cmd
}

func flightDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.SoftDeleteFlight(ctx, id, actorID())
				if err != nil {
					return err
				}
				return printFlights([]domain.Flight{f})
			})
		},
	}
}

func flightCrewCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "crew", Short: "Flight crew roster"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <flight-id>",
		Short: "List the crew assigned to a flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.GetCrewForFlight(ctx, id)
				if err != nil {
					return err
				}
				return printAssignments(items)
			})
		},
	})
	cmd.AddCommand(rosterChangeCmd("add", "Assign a crew member", func(ctx context.Context, e engine.Engine, flightID, crewID int64) (domain.CrewAssignment, error) {
		return e.AddCrewMember(ctx, flightID, crewID, actorID())
	}))
	cmd.AddCommand(rosterChangeCmd("remove", "Unassign a crew member", func(ctx context.Context, e engine.Engine, flightID, crewID int64) (domain.CrewAssignment, error) {
		return e.RemoveCrewMember(ctx, flightID, crewID, actorID())
	}))
	return cmd
}

func rosterChangeCmd(use, short string, fn func(context.Context, engine.Engine, int64, int64) (domain.CrewAssignment, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <flight-id> <crew-member-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flightID, err := parseID(args[0])
			if err != nil {
				return err
			}
			crewID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := fn(ctx, e, flightID, crewID)
				if err != nil {
					return err
				}
				return printAssignments([]domain.CrewAssignment{a})
			})
		},
	}
}

func crewCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "crew", Short: "Manage crew members"}
	cmd.AddCommand(crewListCmd())
	cmd.AddCommand(crewCreateCmd())
	cmd.AddCommand(crewUpdateCmd())
	cmd.AddCommand(crewDeleteCmd())
	return cmd
}

func crewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active crew members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCrewMembers(ctx)
				if err != nil {
					return err
				}
				return printCrew(items)
			})
		},
	}
}

func crewCreateCmd() *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a crew member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCrewMember(ctx, engine.CrewCreateOptions{FullName: name, Role: role, ActorID: actorID()})
				if err != nil {
					return err
				}
				return printCrew([]domain.CrewMember{c})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&role, "role", "", "role, e.g. Piloto")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func crewUpdateCmd() *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change name or role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			opts := engine.CrewUpdateOptions{
				ID:       id,
				FullName: optionalString(cmd, "name", name),
				Role:     optionalString(cmd, "role", role),
				ActorID:  actorID(),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateCrewMember(ctx, opts)
				if err != nil {
					return err
				}
				return printCrew([]domain.CrewMember{c})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&role, "role", "", "role")
	return cmd
}

func crewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a crew member with no assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.SoftDeleteCrewMember(ctx, id, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("crew member %d deleted at %s\n", c.ID, deletedAt(c.DeletedAt))
				return nil
			})
		},
	}
}

func deletedAt(ts *string) string {
	if ts == nil {
		return "-"
	}
	if t, err := time.Parse(time.RFC3339, *ts); err == nil {
		return t.Local().Format(time.DateTime)
	}
	return *ts
}
