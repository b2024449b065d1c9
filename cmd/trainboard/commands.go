package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dgoodall/trainboard/internal/api"
	"github.com/dgoodall/trainboard/internal/domain"
	"github.com/dgoodall/trainboard/internal/profiles"
	"github.com/dgoodall/trainboard/internal/routecache"
	"github.com/dgoodall/trainboard/internal/session"
	"github.com/dgoodall/trainboard/internal/stations"
)

// app bundles the wired dependencies every subcommand works against.
type app struct {
	sessions  *session.Store
	client    *api.Client
	cache     *routecache.Cache
	store     *profiles.Store
	directory *stations.Directory
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	switch args[0] {
	case "login":
		return a.login(ctx, args[1:])
	case "signup":
		return a.signup(ctx, args[1:])
	case "logout":
		a.client.Logout()
		a.cache.Reset()
		fmt.Println("logged out")
		return nil
	case "whoami":
		return a.whoami()
	case "stations":
		return a.stations(args[1:])
	case "profiles":
		return a.profiles(ctx, args[1:])
	case "departures":
		return a.departures(ctx, args[1:])
	case "users":
		return a.users(ctx, args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	user := fs.String("u", "", "username (email)")
	pass := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.client.Login(ctx, *user, *pass); err != nil {
		return err
	}
	fmt.Println("logged in")
	return nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	user := fs.String("u", "", "username (email)")
	pass := fs.String("p", "", "password")
	confirm := fs.String("c", "", "password confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	// Confirmation is a client-side check only; the backend never sees it.
	if *confirm == "" {
		return fmt.Errorf("%w: password confirmation was not provided", domain.ErrValidation)
	}
	if *pass != *confirm {
		return fmt.Errorf("%w: passwords do not match", domain.ErrValidation)
	}
	if err := a.client.Signup(ctx, *user, *pass); err != nil {
		return err
	}
	fmt.Println("account created, logged in")
	return nil
}

func (a *app) whoami() error {
	role, ok := a.sessions.CurrentRole()
	if !ok {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("logged in with %s permissions\n", role)
	return nil
}

func (a *app) stations(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: a search query is required", domain.ErrValidation)
	}
	matches := a.directory.Search(strings.Join(args, " "))
	if len(matches) == 0 {
		fmt.Println("no matching stations")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, s := range matches {
		fmt.Fprintf(w, "%s\t%s\n", s.CRS, s.Name)
	}
	return w.Flush()
}

func (a *app) profiles(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: profiles needs a subcommand (list, create, update, delete, favourite)", domain.ErrValidation)
	}

	switch args[0] {
	case "list":
		if err := a.store.Load(ctx); err != nil {
			return err
		}
		return a.renderProfiles()

	case "create":
		fs := flag.NewFlagSet("profiles create", flag.ContinueOnError)
		from := fs.String("from", "", "comma-separated origin CRS codes")
		to := fs.String("to", "", "comma-separated destination CRS codes")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		origins, destinations, err := a.routeArgs(*from, *to)
		if err != nil {
			return err
		}
		created, err := a.store.Create(ctx, origins, destinations)
		if err != nil {
			return err
		}
		fmt.Printf("created profile %d\n", created.ID)
		return nil

	case "update":
		fs := flag.NewFlagSet("profiles update", flag.ContinueOnError)
		id := fs.Int("id", 0, "profile id")
		from := fs.String("from", "", "comma-separated origin CRS codes")
		to := fs.String("to", "", "comma-separated destination CRS codes")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		origins, destinations, err := a.routeArgs(*from, *to)
		if err != nil {
			return err
		}
		if _, err := a.store.Update(ctx, *id, origins, destinations); err != nil {
			return err
		}
		fmt.Printf("updated profile %d\n", *id)
		return nil

	case "delete":
		fs := flag.NewFlagSet("profiles delete", flag.ContinueOnError)
		id := fs.Int("id", 0, "profile id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := a.store.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("deleted profile %d\n", *id)
		return nil

	case "favourite":
		fs := flag.NewFlagSet("profiles favourite", flag.ContinueOnError)
		id := fs.Int("id", 0, "profile id")
		unset := fs.Bool("unset", false, "clear the favourite instead of setting it")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		// Favourite flips need the current list loaded so the optimistic
		// update and any rollback act on real state.
		if err := a.store.Load(ctx); err != nil {
			return err
		}
		if err := a.store.Favourite(ctx, *id, !*unset); err != nil {
			return err
		}
		if *unset {
			fmt.Printf("profile %d is no longer the favourite\n", *id)
		} else {
			fmt.Printf("profile %d is now the favourite\n", *id)
		}
		return nil

	default:
		return fmt.Errorf("unknown profiles subcommand %q", args[0])
	}
}

func (a *app) departures(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("departures", flag.ContinueOnError)
	from := fs.String("from", "", "comma-separated origin CRS codes")
	to := fs.String("to", "", "comma-separated destination CRS codes")
	refresh := fs.Bool("refresh", false, "bypass the session cache and refetch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	origins, destinations, err := a.routeArgs(*from, *to)
	if err != nil {
		return err
	}

	if err := a.cache.FetchTrainsForRoute(ctx, origins, destinations, routecache.QuickLookupID, *refresh); err != nil {
		return err
	}
	a.renderBoard(routecache.QuickLookupID)
	return nil
}

func (a *app) users(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: users needs a subcommand (list, delete)", domain.ErrValidation)
	}
	if role, ok := a.sessions.CurrentRole(); !ok || role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin permissions required", domain.ErrUnauthenticated)
	}

	switch args[0] {
	case "list":
		users, err := a.client.ListUsers(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tACTIVE\tADMIN")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%t\t%t\n", u.ID, u.Email, u.IsActive, u.IsSuperuser)
		}
		return w.Flush()

	case "delete":
		fs := flag.NewFlagSet("users delete", flag.ContinueOnError)
		id := fs.Int("id", 0, "user id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := a.client.DeleteUser(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("deleted user %d\n", *id)
		return nil

	default:
		return fmt.Errorf("unknown users subcommand %q", args[0])
	}
}

// routeArgs splits and validates the -from/-to flag values.
func (a *app) routeArgs(from, to string) (origins, destinations []string, err error) {
	origins = splitCodes(from)
	destinations = splitCodes(to)
	if err := a.directory.Validate(origins...); err != nil {
		return nil, nil, fmt.Errorf("origins: %w", err)
	}
	if err := a.directory.Validate(destinations...); err != nil {
		return nil, nil, fmt.Errorf("destinations: %w", err)
	}
	return origins, destinations, nil
}

func splitCodes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.ToUpper(strings.TrimSpace(part)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (a *app) renderProfiles() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tFAVOURITE")
	for _, p := range a.store.Profiles() {
		fav := ""
		if p.Favourite {
			fav = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, strings.Join(p.Origins, ","), strings.Join(p.Destinations, ","), fav)
	}
	return w.Flush()
}

func (a *app) renderBoard(routeID int) {
	trains := a.cache.TrainsFor(routeID)
	if len(trains) == 0 {
		fmt.Println("no departures found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEXPECTED\tPLAT\tDESTINATION\tOPERATOR")
	for _, t := range trains {
		dest := t.DestinationName
		if t.Via != "" {
			dest += " via " + t.Via
		}
		expected := t.EstimatedDeparture
		if t.IsCancelled {
			expected = "Cancelled"
			if t.CancelReason != "" {
				dest += " (" + t.CancelReason + ")"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ScheduledDeparture, expected, t.Platform, dest, t.Operator)
	}
	w.Flush()

	if at, ok := a.cache.LastFetchTime(routeID); ok {
		fmt.Printf("fetched at %s\n", at.Format(time.Kitchen))
	}
}
