package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/pagination"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
)

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":    {"start a session", cmdLogin},
	"logout":   {"end the session", cmdLogout},
	"whoami":   {"show the logged-in user", cmdWhoami},
	"projects": {"list projects", cmdProjects},
	"ranking":  {"show the ranking", cmdRanking},
	"project":  {"show one project and its evaluations", cmdProject},
	"rate":     {"evaluate a project (professors)", cmdRate},
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("redctl "+name, flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	return fs
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" && fs.NArg() > 0 {
		*email = fs.Arg(0)
	}

	if *password == "" {
		p, err := readPassword(a.stdin, a.stdout)
		if err != nil {
			return err
		}
		*password = p
	}

	user, err := a.accounts.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Sesión iniciada como %s (%s)\n", displayName(user), user.Role)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise, so the command also works with piped input.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Contraseña: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.accounts.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Sesión cerrada")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	st := a.accounts.Session()
	if !st.IsAuthenticated || st.User == nil {
		fmt.Fprintln(a.stdout, "No has iniciado sesión")
		return nil
	}
	u := *st.User
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", u.ID)
	fmt.Fprintf(tw, "Nombre\t%s\n", displayName(u))
	fmt.Fprintf(tw, "Correo\t%s\n", u.Email)
	fmt.Fprintf(tw, "Rol\t%s\n", u.Role)
	return tw.Flush()
}

func cmdProjects(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "projects")
	page := fs.Int("page", 1, "page to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	listing, err := a.catalog.Projects(ctx, *page)
	if err != nil {
		return err
	}
	if len(listing.Items) == 0 {
		fmt.Fprintln(a.stdout, "No hay proyectos")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTÍTULO\tCALIFICACIÓN\t")
	for _, card := range listing.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t\n",
			card.Project.ID, card.Project.Title, starString(card.Rating.Stars), card.Rating.Label())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printWindow(a.stdout, listing.Pagination, *page)
	return nil
}

func cmdRanking(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "ranking")
	page := fs.Int("page", 1, "page to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	listing, err := a.catalog.Ranking(ctx, *page)
	if err != nil {
		return err
	}
	if len(listing.Items) == 0 {
		fmt.Fprintln(a.stdout, "El ranking está vacío")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTÍTULO\tCALIFICACIÓN\t")
	for _, row := range listing.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s %s\t\n",
			row.Position, row.Project.Title, starString(row.Rating.Stars), row.Rating.Label())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printWindow(a.stdout, listing.Pagination, *page)
	return nil
}

func cmdProject(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return apperror.ValidationFailed("id", "uso: redctl project <id>")
	}
	d, err := a.catalog.Project(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "%s\n", d.Project.Title)
	if d.Project.Description != "" {
		fmt.Fprintf(a.stdout, "%s\n", d.Project.Description)
	}
	if len(d.Project.Authors) > 0 {
		fmt.Fprintf(a.stdout, "Autores: %s\n", strings.Join(d.Project.Authors, ", "))
	}
	fmt.Fprintf(a.stdout, "Calificación: %s %s (%d)\n", starString(d.Rating.Stars), d.Rating.Label(), d.Rating.Count)

	if len(d.Evaluations) == 0 {
		return nil
	}
	fmt.Fprintln(a.stdout)
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PUNTUACIÓN\tCOMENTARIO\t")
	for _, e := range d.Evaluations {
		fmt.Fprintf(tw, "%s\t%s\t\n", strconv.FormatFloat(e.Score, 'f', 1, 64), e.Feedback)
	}
	return tw.Flush()
}

func cmdRate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "rate")
	var draft rating.Draft
	fs.IntVar(&draft.Dimensions.Security, "security", 0, "seguridad (1-5)")
	fs.IntVar(&draft.Dimensions.Functionality, "functionality", 0, "funcionalidad (1-5)")
	fs.IntVar(&draft.Dimensions.Efficiency, "efficiency", 0, "eficiencia (1-5)")
	fs.IntVar(&draft.Dimensions.Design, "design", 0, "diseño (1-5)")
	fs.IntVar(&draft.Dimensions.Architecture, "architecture", 0, "arquitectura (1-5)")
	fs.StringVar(&draft.Feedback, "feedback", "", "comentario opcional")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return apperror.ValidationFailed("id", "uso: redctl rate [flags] <project-id>")
	}

	res, err := a.catalog.Evaluate(ctx, fs.Arg(0), draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Evaluación enviada: %s %.1f\n", starString(res.Stars), res.Average)
	return nil
}

func displayName(u model.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func starString(s rating.Stars) string {
	return strings.Repeat("★", s.Full) + strings.Repeat("½", s.Half) + strings.Repeat("☆", s.Empty)
}

// printWindow renders the page control, e.g. "‹ 1 [2] 3 4 5 ›". A request
// for a page that does not exist leaves the listing where it was, which is
// reported instead of failing.
func printWindow(w io.Writer, v pagination.View, requested int) {
	if v.TotalPages <= 1 {
		return
	}
	var b strings.Builder
	if v.HasPrev {
		b.WriteString("‹ ")
	}
	for i, n := range v.Window {
		if i > 0 {
			b.WriteByte(' ')
		}
		if n == v.CurrentPage {
			fmt.Fprintf(&b, "[%d]", n)
		} else {
			b.WriteString(strconv.Itoa(n))
		}
	}
	if v.HasNext {
		b.WriteString(" ›")
	}
	fmt.Fprintf(w, "\nPágina %d de %d  %s\n", v.CurrentPage, v.TotalPages, b.String())
	if requested != v.CurrentPage {
		fmt.Fprintf(w, "La página %d no existe\n", requested)
	}
}
