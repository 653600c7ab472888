package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/safealert/internal/app"
	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/model"
)

const timeLayout = "2006-01-02 15:04"

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// ago renders t relative to now, for timestamps the client produced itself.
func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func printUser(w io.Writer, u *model.User) {
	if u == nil {
		return
	}
	fmt.Fprintf(w, "%s <%s>", u.Name, u.Email)
	if u.Role != "" {
		fmt.Fprintf(w, " [%s]", u.Role)
	}
	fmt.Fprintln(w)
}

func printUsers(w io.Writer, page *app.UserPage) {
	if page == nil || len(page.Users) == 0 {
		fmt.Fprintln(w, "No users.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tJOINED")
	for _, u := range page.Users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, orDash(u.Role), stamp(u.CreatedAt))
	}
	tw.Flush()
	if p := page.Pagination; p.Pages > 0 {
		fmt.Fprintf(w, "Page %d of %d (%d users)\n", p.Page, p.Pages, p.Total)
	}
}

func printReport(w io.Writer, r *model.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "%s  %s  [%s]\n", r.ID, model.ReportTypeName(r.Type), model.StatusName(r.Status))
	fmt.Fprintf(w, "  Where: %s\n", orDash(r.Location.Address))
	if c := r.Location.Coordinates; c != nil {
		fmt.Fprintf(w, "         %s  %s\n", geo.FormatCoordinates(c.Latitude, c.Longitude), geo.MapsLink(c.Latitude, c.Longitude))
	}
	fmt.Fprintf(w, "  When:  %s\n", stamp(r.IncidentTime))
	fmt.Fprintf(w, "  What:  %s\n", r.Description)
	if r.IsAnonymous {
		fmt.Fprintln(w, "  Submitted anonymously")
	}
}

func printReports(w io.Writer, reports []model.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tWHEN\tWHERE")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, model.ReportTypeName(r.Type), model.StatusName(r.Status), stamp(r.IncidentTime), orDash(r.Location.Address))
	}
	tw.Flush()
}

func printStats(w io.Writer, s *model.ReportStats) {
	if s == nil {
		s = &model.ReportStats{}
	}
	fmt.Fprintf(w, "Total reports: %d\n", s.Total)
	if len(s.ByType) > 0 {
		fmt.Fprintln(w, "By type:")
		tw := table(w)
		for _, t := range []string{
			model.ReportSuspiciousPerson, model.ReportSuspiciousVehicle, model.ReportNoiseDisturbance,
			model.ReportTrespassing, model.ReportVandalism, model.ReportOther,
		} {
			if n, ok := s.ByType[t]; ok {
				fmt.Fprintf(tw, "  %s\t%d\n", model.ReportTypeName(t), n)
			}
		}
		tw.Flush()
	}
	if len(s.ByStatus) > 0 {
		fmt.Fprintln(w, "By status:")
		tw := table(w)
		for _, st := range []string{model.StatusPending, model.StatusUnderReview, model.StatusResolved, model.StatusDismissed} {
			if n, ok := s.ByStatus[st]; ok {
				fmt.Fprintf(tw, "  %s\t%d\n", model.StatusName(st), n)
			}
		}
		tw.Flush()
	}
}

func printTracker(w io.Writer, t *model.Tracker) {
	if t == nil {
		return
	}
	state := "inactive"
	if t.IsActive {
		state = "active"
	}
	fmt.Fprintf(w, "%s  %s (%s)  contact %s  device %s\n", t.ID, t.ChildName, state, orDash(t.ContactNumber), orDash(t.DeviceID))
	if loc := t.LastLocation; loc != nil {
		fmt.Fprintf(w, "  Last seen %s at %s\n", ago(loc.Timestamp), orDash(loc.Address))
		fmt.Fprintf(w, "  %s  %s\n", geo.FormatCoordinates(loc.Latitude, loc.Longitude), geo.MapsLink(loc.Latitude, loc.Longitude))
	}
}

func printTrackers(w io.Writer, list *app.TrackerList) {
	if list == nil || len(list.Trackers) == 0 {
		fmt.Fprintln(w, "No trackers. Create one with 'safealert tracker create'.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "\tID\tNAME\tSTATE\tLAST SEEN\tADDRESS")
	for _, t := range list.Trackers {
		mark := ""
		if list.Current != nil && list.Current.ID == t.ID {
			mark = "*"
		}
		state := "inactive"
		if t.IsActive {
			state = "active"
		}
		seen, addr := "-", "-"
		if t.LastLocation != nil {
			seen, addr = stamp(t.LastLocation.Timestamp), orDash(t.LastLocation.Address)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, t.ID, t.ChildName, state, seen, addr)
	}
	tw.Flush()
}

func printFixes(w io.Writer, fixes []model.LocationFix) {
	if len(fixes) == 0 {
		fmt.Fprintln(w, "No location history.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "WHEN\tCOORDINATES\tACCURACY\tADDRESS")
	for _, f := range fixes {
		fmt.Fprintf(tw, "%s\t%s\t%.0fm\t%s\n", stamp(f.Timestamp), geo.FormatCoordinates(f.Latitude, f.Longitude), f.Accuracy, orDash(f.Address))
	}
	tw.Flush()
}

func printSharedLocation(w io.Writer, l *model.SharedLocation) {
	if l == nil {
		return
	}
	fmt.Fprintf(w, "%s\n", orDash(l.Address))
	fmt.Fprintf(w, "  %s (±%.0fm)  %s\n", geo.FormatCoordinates(l.Latitude, l.Longitude), l.Accuracy, geo.MapsLink(l.Latitude, l.Longitude))
	if !l.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "  Shared until %s\n", stamp(l.ExpiresAt))
	}
	if len(l.SharedWith) > 0 {
		fmt.Fprintf(w, "  Shared with %s\n", strings.Join(l.SharedWith, ", "))
	}
}

func printSharedLocations(w io.Writer, locs []model.SharedLocation) {
	if len(locs) == 0 {
		fmt.Fprintln(w, "No shared locations.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "UPDATED\tCOORDINATES\tACTIVE\tADDRESS")
	for _, l := range locs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", stamp(l.UpdatedAt), geo.FormatCoordinates(l.Latitude, l.Longitude), l.IsActive, orDash(l.Address))
	}
	tw.Flush()
}

func printNearby(w io.Writer, locs []app.NearbyLocation) {
	if len(locs) == 0 {
		fmt.Fprintln(w, "Nobody is sharing nearby.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "DISTANCE\tWHO\tADDRESS\tMAP")
	for _, l := range locs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Distance(), orDash(l.UserName), orDash(l.Address), geo.MapsLink(l.Latitude, l.Longitude))
	}
	tw.Flush()
}

func printActivity(w io.Writer, entries []model.ActivityEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No recent activity.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s\n", ago(e.Timestamp), e.Title)
		if e.Description != "" {
			fmt.Fprintf(w, "  %s\n", e.Description)
		}
		if e.Location != "" {
			fmt.Fprintf(w, "  %s\n", e.Location)
		}
	}
}
