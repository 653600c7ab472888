package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dukerupert/safealert/internal/api"
	"github.com/dukerupert/safealert/internal/app"
	"github.com/dukerupert/safealert/internal/dashboard"
	"github.com/dukerupert/safealert/internal/model"
)

type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, rt *runtime, args []string) error
}

var commands = []command{
	{"login", "-email EMAIL [-password PW]", "log in and save the session", cmdLogin},
	{"register", "-name NAME -email EMAIL [-password PW]", "create an account", cmdRegister},
	{"logout", "", "end the session", cmdLogout},
	{"status", "", "show the logged-in user and token expiry", cmdStatus},
	{"profile", "-name NAME -email EMAIL", "update your profile", cmdProfile},
	{"passwd", "", "change your password (logs out)", cmdPasswd},
	{"users", "[-page N] [-limit N]", "list users (admin)", cmdUsers},
	{"report", "-type TYPE -address ADDR -description TEXT [-anonymous] [-visibility V] [-time RFC3339]", "submit an incident report", cmdReport},
	{"feed", "[-page N] [-limit N] [-type TYPE] [-status STATUS]", "browse community reports", cmdFeed},
	{"show-report", "ID", "show one report", cmdShowReport},
	{"update-report", "[-description TEXT] [-status STATUS] [-visibility V] ID", "edit a report", cmdUpdateReport},
	{"my-reports", "", "list your reports", cmdMyReports},
	{"delete-report", "ID", "delete one of your reports", cmdDeleteReport},
	{"stats", "", "report statistics", cmdStats},
	{"tracker", "create|list|toggle|delete|history ...", "manage trackers", cmdTracker},
	{"track", "", "follow the current tracker until interrupted, serving the dashboard when configured", cmdTrack},
	{"location", "share|update|stop|me|history ...", "share your location", cmdLocation},
	{"nearby", "[-radius KM]", "shared locations around you", cmdNearby},
	{"activity", "", "recent activity on this device", cmdActivity},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func isHelp(arg string) bool {
	switch arg {
	case "help", "-h", "-help", "--help":
		return true
	}
	return false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: safealert <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-14s %s\n", c.name, c.summary)
		if c.args != "" {
			fmt.Fprintf(w, "  %-14s   %s %s\n", "", c.name, c.args)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration is read from SAFEALERT_* environment variables and an optional .env file.")
}

// input is where prompted secrets are read from.
var input = bufio.NewReader(os.Stdin)

func newFlags(rt *runtime, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(rt.out)
	return fs
}

// parse returns errHelp when -h was given so callers can stop quietly.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return usageErrorf("%s: %v", fs.Name(), err)
	}
	return nil
}

var errHelp = errors.New("help requested")

func wrapHelp(err error) error {
	if errors.Is(err, errHelp) {
		return nil
	}
	return err
}

func prompt(rt *runtime, label string) (string, error) {
	fmt.Fprintf(rt.out, "%s: ", label)
	line, err := input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func secret(rt *runtime, value *string, label string) error {
	if *value != "" {
		return nil
	}
	v, err := prompt(rt, label)
	if err != nil {
		return err
	}
	*value = v
	return nil
}

func oneArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() != 1 {
		return "", usageErrorf("%s: expected %s", fs.Name(), what)
	}
	return fs.Arg(0), nil
}

// dispatch sends an intent and asserts the controller's result type.
func dispatch[T any](ctx context.Context, rt *runtime, in app.Intent) (T, error) {
	var zero T
	res, err := rt.app.Dispatch(ctx, in)
	if err != nil || res == nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result %T for %T", res, in)
	}
	return v, nil
}

func cmdLogin(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "login")
	in := app.Login{}
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "password (prompted when omitted)")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	if err := secret(rt, &in.Password, "Password"); err != nil {
		return err
	}
	u, err := dispatch[*model.User](ctx, rt, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "Logged in as %s <%s>\n", u.Name, u.Email)
	return nil
}

func cmdRegister(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "register")
	in := app.Register{}
	fs.StringVar(&in.Name, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "password (prompted when omitted)")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	if in.Password == "" {
		if err := secret(rt, &in.Password, "Password"); err != nil {
			return err
		}
		if err := secret(rt, &in.Confirm, "Confirm password"); err != nil {
			return err
		}
	}
	u, err := dispatch[*model.User](ctx, rt, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "Welcome, %s. You are logged in.\n", u.Name)
	return nil
}

func cmdLogout(ctx context.Context, rt *runtime, _ []string) error {
	if _, err := rt.app.Dispatch(ctx, app.Logout{}); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "Logged out.")
	return nil
}

func cmdStatus(ctx context.Context, rt *runtime, _ []string) error {
	u, err := dispatch[*model.User](ctx, rt, app.CheckAuth{})
	if errors.Is(err, app.ErrNotLoggedIn) {
		fmt.Fprintln(rt.out, "Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}
	printUser(rt.out, u)

	token, err := rt.sessions.AccessToken()
	if err != nil {
		return err
	}
	if exp, ok := api.TokenExpiry(token); ok {
		left := time.Until(exp).Round(time.Second)
		if left > 0 {
			fmt.Fprintf(rt.out, "Token expires %s (in %s)\n", exp.Local().Format(time.RFC1123), left)
		} else {
			fmt.Fprintf(rt.out, "Token expired %s; it is refreshed on the next request\n", exp.Local().Format(time.RFC1123))
		}
	}
	return nil
}

func cmdProfile(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "profile")
	in := app.UpdateProfile{}
	fs.StringVar(&in.Name, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "account email")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	u, err := dispatch[*model.User](ctx, rt, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "Profile updated.")
	printUser(rt.out, u)
	return nil
}

func cmdPasswd(ctx context.Context, rt *runtime, _ []string) error {
	in := app.ChangePassword{}
	for _, f := range []struct {
		dst   *string
		label string
	}{
		{&in.Current, "Current password"},
		{&in.New, "New password"},
		{&in.Confirm, "Confirm new password"},
	} {
		if err := secret(rt, f.dst, f.label); err != nil {
			return err
		}
	}
	if _, err := rt.app.Dispatch(ctx, in); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "Password changed. Please login again.")
	return nil
}

func cmdUsers(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "users")
	in := app.ListUsers{}
	fs.IntVar(&in.Page, "page", 1, "page number")
	fs.IntVar(&in.Limit, "limit", 10, "users per page")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	page, err := dispatch[*app.UserPage](ctx, rt, in)
	if err != nil {
		return err
	}
	printUsers(rt.out, page)
	return nil
}

func cmdReport(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "report")
	in := app.SubmitReport{}
	var when string
	fs.StringVar(&in.Type, "type", "", "suspicious-person, suspicious-vehicle, noise-disturbance, trespassing, vandalism or other")
	fs.StringVar(&in.Address, "address", "", "where it happened")
	fs.StringVar(&in.Description, "description", "", "what happened")
	fs.BoolVar(&in.Anonymous, "anonymous", false, "hide your name")
	fs.StringVar(&in.Visibility, "visibility", "", "report visibility (default public)")
	fs.StringVar(&when, "time", "", "incident time, RFC3339 (default now)")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	if when != "" {
		t, err := time.Parse(time.RFC3339, when)
		if err != nil {
			return usageErrorf("report: invalid -time %q, want RFC3339", when)
		}
		in.IncidentTime = t
	}
	r, err := dispatch[*model.Report](ctx, rt, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "Report submitted.")
	printReport(rt.out, r)
	return nil
}

func cmdFeed(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "feed")
	in := app.Feed{}
	fs.IntVar(&in.Page, "page", api.DefaultReportsPage, "page number")
	fs.IntVar(&in.Limit, "limit", api.DefaultReportsLimit, "reports per page")
	fs.StringVar(&in.Type, "type", "", "filter by report type")
	fs.StringVar(&in.Status, "status", "", "filter by status")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	page, err := dispatch[*app.FeedPage](ctx, rt, in)
	if err != nil {
		return err
	}
	printReports(rt.out, page.Reports)
	p := page.Pagination
	if p.Pages > 0 {
		fmt.Fprintf(rt.out, "Page %d of %d (%d reports)\n", p.Page, p.Pages, p.Total)
	}
	return nil
}

func cmdShowReport(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "show-report")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	id, err := oneArg(fs, "a report id")
	if err != nil {
		return err
	}
	r, err := dispatch[*model.Report](ctx, rt, app.GetReport{ID: id})
	if err != nil {
		return err
	}
	printReport(rt.out, r)
	return nil
}

func cmdUpdateReport(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "update-report")
	in := app.UpdateReport{}
	fs.StringVar(&in.Description, "description", "", "new description")
	fs.StringVar(&in.Status, "status", "", "pending, under-review, resolved or dismissed")
	fs.StringVar(&in.Visibility, "visibility", "", "new visibility")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	id, err := oneArg(fs, "a report id")
	if err != nil {
		return err
	}
	in.ID = id
	r, err := dispatch[*model.Report](ctx, rt, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "Report updated.")
	printReport(rt.out, r)
	return nil
}

func cmdMyReports(ctx context.Context, rt *runtime, _ []string) error {
	reports, err := dispatch[[]model.Report](ctx, rt, app.MyReports{})
	if err != nil {
		return err
	}
	printReports(rt.out, reports)
	return nil
}

func cmdDeleteReport(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "delete-report")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	id, err := oneArg(fs, "a report id")
	if err != nil {
		return err
	}
	if _, err := rt.app.Dispatch(ctx, app.DeleteReport{ID: id}); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "Report deleted.")
	return nil
}

func cmdStats(ctx context.Context, rt *runtime, _ []string) error {
	stats, err := dispatch[*model.ReportStats](ctx, rt, app.GetReportStats{})
	if err != nil {
		return err
	}
	printStats(rt.out, stats)
	return nil
}

func cmdTracker(ctx context.Context, rt *runtime, args []string) error {
	if len(args) == 0 {
		return usageErrorf("tracker: expected create, list, toggle, delete or history")
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "create":
		fs := newFlags(rt, "tracker create")
		in := app.CreateTracker{}
		fs.StringVar(&in.ChildName, "name", "", "name of the person tracked")
		fs.StringVar(&in.ContactNumber, "contact", "", "contact phone number")
		fs.StringVar(&in.DeviceID, "device", "", "device identifier")
		if err := parse(fs, args); err != nil {
			return wrapHelp(err)
		}
		t, err := dispatch[*model.Tracker](ctx, rt, in)
		if err != nil {
			return err
		}
		fmt.Fprintln(rt.out, "Tracker created.")
		printTracker(rt.out, t)
		return nil

	case "list":
		list, err := dispatch[*app.TrackerList](ctx, rt, app.LoadTrackers{NoPolling: true})
		if err != nil {
			return err
		}
		printTrackers(rt.out, list)
		return nil

	case "toggle", "delete":
		fs := newFlags(rt, "tracker "+sub)
		if err := parse(fs, args); err != nil {
			return wrapHelp(err)
		}
		id, err := oneArg(fs, "a tracker id")
		if err != nil {
			return err
		}
		if sub == "delete" {
			if _, err := rt.app.Dispatch(ctx, app.DeleteTracker{ID: id}); err != nil {
				return err
			}
			fmt.Fprintln(rt.out, "Tracker deleted.")
			return nil
		}
		t, err := dispatch[*model.Tracker](ctx, rt, app.ToggleTracker{ID: id})
		if err != nil {
			return err
		}
		printTracker(rt.out, t)
		return nil

	case "history":
		fs := newFlags(rt, "tracker history")
		in := app.TrackerHistory{}
		fs.IntVar(&in.Limit, "limit", api.DefaultTrackerHistoryLimit, "number of fixes")
		if err := parse(fs, args); err != nil {
			return wrapHelp(err)
		}
		id, err := oneArg(fs, "a tracker id")
		if err != nil {
			return err
		}
		in.ID = id
		fixes, err := dispatch[[]model.LocationFix](ctx, rt, in)
		if err != nil {
			return err
		}
		printFixes(rt.out, fixes)
		return nil

	default:
		return usageErrorf("tracker: unknown subcommand %q", sub)
	}
}

// cmdTrack follows the current tracker until the process is interrupted.
func cmdTrack(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "track")
	addr := fs.String("dashboard", rt.cfg.DashboardAddr, "dashboard listen address, empty to disable")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}

	list, err := dispatch[*app.TrackerList](ctx, rt, app.LoadTrackers{})
	if err != nil {
		return err
	}
	if list.Current == nil {
		// The first cycle may already have torn the session down.
		select {
		case <-rt.app.SessionExpired():
			return api.ErrSessionExpired
		default:
		}
		return app.ErrNoTracker
	}
	printTracker(rt.out, list.Current)
	if !list.Current.IsActive {
		fmt.Fprintln(rt.out, "Tracker is inactive; location updates are paused. Toggle it to resume.")
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// errCh stays nil without a dashboard so the select waits on ctx alone.
	var errCh chan error
	if *addr != "" {
		errCh = make(chan error, 1)
		srv := dashboard.New(rt.app, rt.hub, rt.cfg.DashboardToken, rt.logger.With("component", "dashboard"))
		go func() { errCh <- srv.Run(ctx, *addr) }()
		fmt.Fprintf(rt.out, "Dashboard at http://%s\n", *addr)
	}

	fmt.Fprintln(rt.out, "Tracking. Press Ctrl-C to stop.")
	select {
	case <-ctx.Done():
		if errCh != nil {
			err = <-errCh
		}
	case err = <-errCh:
	case <-rt.app.SessionExpired():
		stop()
		if errCh != nil {
			<-errCh
		}
		err = api.ErrSessionExpired
	}
	rt.poller.Stop()
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "Stopped.")
	return nil
}

func cmdLocation(ctx context.Context, rt *runtime, args []string) error {
	if len(args) == 0 {
		return usageErrorf("location: expected share, update, stop, me or history")
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "share":
		fs := newFlags(rt, "location share")
		in := app.ShareLocation{}
		var with string
		fs.StringVar(&with, "with", "", "comma-separated user ids to share with")
		fs.IntVar(&in.Duration, "duration", 0, "minutes to share for, 0 for no limit")
		if err := parse(fs, args); err != nil {
			return wrapHelp(err)
		}
		in.SharedWith = splitList(with)
		loc, err := dispatch[*model.SharedLocation](ctx, rt, in)
		if err != nil {
			return err
		}
		fmt.Fprintln(rt.out, "Location shared.")
		printSharedLocation(rt.out, loc)
		return nil

	case "update":
		loc, err := dispatch[*model.SharedLocation](ctx, rt, app.UpdateSharedLocation{})
		if err != nil {
			return err
		}
		printSharedLocation(rt.out, loc)
		return nil

	case "stop":
		if _, err := rt.app.Dispatch(ctx, app.StopSharing{}); err != nil {
			return err
		}
		fmt.Fprintln(rt.out, "Location sharing stopped.")
		return nil

	case "me":
		loc, err := dispatch[*model.SharedLocation](ctx, rt, app.MyLocation{})
		if err != nil {
			return err
		}
		if loc == nil {
			fmt.Fprintln(rt.out, "You are not sharing your location.")
			return nil
		}
		printSharedLocation(rt.out, loc)
		return nil

	case "history":
		fs := newFlags(rt, "location history")
		in := app.LocationHistory{}
		fs.IntVar(&in.Limit, "limit", api.DefaultLocationHistoryLimit, "number of entries")
		if err := parse(fs, args); err != nil {
			return wrapHelp(err)
		}
		locs, err := dispatch[[]model.SharedLocation](ctx, rt, in)
		if err != nil {
			return err
		}
		printSharedLocations(rt.out, locs)
		return nil

	default:
		return usageErrorf("location: unknown subcommand %q", sub)
	}
}

func cmdNearby(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlags(rt, "nearby")
	in := app.Nearby{}
	fs.Float64Var(&in.Radius, "radius", api.DefaultNearbyRadius, "search radius in km")
	if err := parse(fs, args); err != nil {
		return wrapHelp(err)
	}
	locs, err := dispatch[[]app.NearbyLocation](ctx, rt, in)
	if err != nil {
		return err
	}
	printNearby(rt.out, locs)
	return nil
}

func cmdActivity(ctx context.Context, rt *runtime, _ []string) error {
	entries, err := dispatch[[]model.ActivityEntry](ctx, rt, app.RecentActivity{})
	if err != nil {
		return err
	}
	printActivity(rt.out, entries)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
