package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	vc "github.com/cerbyonvault/vaultclient"
)

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("vaultctl "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = a.prompt("Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.prompt("Password: "); err != nil {
			return err
		}
	}

	if err := a.auth.Session().Login(ctx, *email, *password); err != nil {
		return err
	}
	who := *email
	if id := a.auth.Session().CurrentIdentity(); id != nil && id.Email != "" {
		who = id.Email
	}
	fmt.Fprintf(a.stdout, "logged in as %s (profile %s)\n", who, a.cfg.Profile)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if err := a.auth.Session().Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	fs := a.flags("whoami")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	session := a.auth.Session()
	if session.Profile() == nil {
		if err := session.RefreshProfile(ctx); err != nil {
			return err
		}
	}
	id, profile := session.CurrentIdentity(), session.Profile()
	if *asJSON {
		return a.printJSON(map[string]any{"identity": id, "profile": profile})
	}

	fmt.Fprintf(a.stdout, "%s <%s>\n", profile.DisplayName(), profile.Email)
	fmt.Fprintf(a.stdout, "user id:  %d\n", profile.ID)
	if id != nil {
		fmt.Fprintf(a.stdout, "token expires: %s\n", id.ExpiresAt().Local().Format(time.RFC3339))
	}
	var teams []string
	for _, t := range profile.Teams {
		teams = append(teams, t.Name)
	}
	if len(teams) > 0 {
		fmt.Fprintf(a.stdout, "teams:    %s\n", strings.Join(teams, ", "))
	}
	return nil
}

func cmdToken(ctx context.Context, a *app, args []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	tok, err := a.auth.TokenSource().WithContext(ctx).Token()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, tok.AccessToken)
	return nil
}

func cmdProfiles(ctx context.Context, a *app, args []string) error {
	names, err := a.storage.profiles(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		marker := " "
		if name == a.cfg.Profile {
			marker = "*"
		}
		fmt.Fprintf(a.stdout, "%s %s\n", marker, name)
	}
	return nil
}

func cmdCerts(ctx context.Context, a *app, args []string) error {
	fs := a.flags("certs")
	asJSON := fs.Bool("json", false, "print JSON")
	expiring := fs.Int("expiring", 0, "only show certificates expiring within this many days")
	team := fs.Int64("team", 0, "only show certificates shared with this team")
	if err := fs.Parse(args); err != nil {
		return err
	}

	roots, err := a.inv.ListCertificates(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return a.printJSON(roots)
	}

	now := time.Now()
	tw := a.table()
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tNOT AFTER\tSTATUS")
	for i := range roots {
		roots[i].Walk(func(c *vc.Certificate, depth int) bool {
			if *expiring > 0 && !c.ExpiresWithin(now, time.Duration(*expiring)*24*time.Hour) {
				return true
			}
			if *team != 0 && !vc.HasTeam(c.AccessTeams, *team) {
				return true
			}
			status := "valid"
			if c.IsExpired {
				status = "expired"
			}
			fmt.Fprintf(tw, "%d\t%s%s\t%s\t%s\t%s\n", c.ID, strings.Repeat("  ", depth), c.Name,
				c.CertificateType, c.NotAfter.Format("2006-01-02"), status)
			return true
		})
	}
	return tw.Flush()
}

func cmdKeys(ctx context.Context, a *app, args []string) error {
	fs := a.flags("keys")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	keys, err := a.inv.ListKeys(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return a.printJSON(keys)
	}

	tw := a.table()
	fmt.Fprintln(tw, "ID\tNAME\tBITS\tCERTIFICATE")
	for _, k := range keys {
		cert := "-"
		if k.Certificate != nil {
			cert = k.Certificate.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", k.ID, k.Name, k.KeySize, cert)
	}
	return tw.Flush()
}

func cmdWebsites(ctx context.Context, a *app, args []string) error {
	fs := a.flags("websites")
	asJSON := fs.Bool("json", false, "print JSON")
	certID := fs.Int64("cert", 0, "only websites of this certificate")
	add := fs.String("add", "", "attach this URL to -cert")
	del := fs.Int64("delete", 0, "delete the website with this id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *del != 0:
		if err := a.inv.DeleteWebsite(ctx, *del); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "deleted website %d\n", *del)
		return nil
	case *add != "":
		if *certID == 0 {
			return errors.New("-add needs -cert")
		}
		site, err := a.inv.AddWebsite(ctx, *certID, *add)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "added website %d (%s)\n", site.ID, site.URL)
		return nil
	}

	var sites []vc.Website
	var err error
	if *certID != 0 {
		sites, err = a.inv.CertificateWebsites(ctx, *certID)
	} else {
		sites, err = a.inv.ListWebsites(ctx)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return a.printJSON(sites)
	}

	tw := a.table()
	fmt.Fprintln(tw, "ID\tURL\tCERTIFICATE")
	for _, s := range sites {
		cert := "-"
		if s.Certificate != nil {
			cert = s.Certificate.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.ID, s.URL, cert)
	}
	return tw.Flush()
}

func cmdTeams(ctx context.Context, a *app, args []string) error {
	fs := a.flags("teams")
	asJSON := fs.Bool("json", false, "print JSON")
	id := fs.Int64("id", 0, "show one team with its members")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id != 0 {
		team, err := a.inv.GetTeam(ctx, *id)
		if err != nil {
			return err
		}
		if *asJSON {
			return a.printJSON(team)
		}
		fmt.Fprintf(a.stdout, "%s (%d)\n", team.Name, team.ID)
		for _, m := range team.Members {
			fmt.Fprintf(a.stdout, "  %s <%s>\n", m.DisplayName(), m.Email)
		}
		return nil
	}

	teams, err := a.inv.ListTeams(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return a.printJSON(teams)
	}
	tw := a.table()
	fmt.Fprintln(tw, "ID\tNAME")
	for _, t := range teams {
		fmt.Fprintf(tw, "%d\t%s\n", t.ID, t.Name)
	}
	return tw.Flush()
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	fs := a.flags("export")
	id := fs.Int64("id", 0, "certificate id")
	format := fs.String("format", "pem", "pem, der or pfx")
	withKey := fs.Bool("key", false, "include the private key")
	withChain := fs.Bool("chain", false, "include the issuer chain")
	password := fs.String("password", "", "PFX password")
	out := fs.String("o", "", "output file (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errors.New("export needs -id")
	}

	data, err := a.inv.ExportCertificate(ctx, *id, vc.ExportOptions{
		Format:       vc.ExportFormat(*format),
		IncludeKey:   *withKey,
		IncludeChain: *withChain,
		Password:     *password,
	})
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "wrote %d bytes to %s\n", len(data), *out)
	return nil
}

func cmdUpload(ctx context.Context, a *app, args []string) error {
	fs := a.flags("upload")
	path := fs.String("file", "", "certificate, key or PKCS#12 file")
	name := fs.String("name", "", "name for the imported certificate (first one only)")
	teams := fs.String("teams", "", "comma separated team ids granted access")
	password := fs.String("password", "", "PKCS#12 password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("upload needs -file")
	}
	teamIDs, err := vc.ParseTeamIDs(*teams)
	if err != nil {
		return err
	}
	if teamIDs == nil {
		teamIDs = []int64{}
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	preview, err := a.inv.UploadCertFile(ctx, filepath.Base(*path), f, *password)
	if err != nil {
		return err
	}

	req := vc.ImportRequest{SessionKey: preview.SessionKey}
	for i, c := range preview.Certificates {
		certName := c.CommonName
		if i == 0 && *name != "" {
			certName = *name
		}
		if certName == "" {
			certName = c.Filename
		}
		req.Certs = append(req.Certs, vc.ImportCertificate{TempID: c.TempID, Name: certName, Teams: teamIDs, URLs: []string{}})
	}
	if k := preview.PrivateKey; k != nil {
		req.Key = &vc.ImportKey{TempID: k.TempID, Filename: k.Filename, Teams: teamIDs, BitLength: k.BitLength}
		if len(req.Certs) > 0 {
			req.Key.LinkedCertTempID = req.Certs[0].TempID
		}
	}

	res, err := a.inv.ImportCertMetadata(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s (%d imported)\n", res.Message, res.ImportedCount)
	return nil
}

func cmdDashboard(ctx context.Context, a *app, args []string) error {
	fs := a.flags("dashboard")
	days := fs.Int("days", 30, "expiry window in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o, err := a.inv.DashboardOverview(ctx)
	if err != nil {
		return err
	}
	soon, err := a.inv.ExpiringSoon(ctx, *days)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "certificates: %d total, %d valid, %d expired\n", o.Total, o.Valid, o.Expired)
	fmt.Fprintf(a.stdout, "expiring within %d days: %d\n", soon.Days, soon.Count)
	return nil
}
