// goidentity-admin is an operator CLI for user lifecycle management: ban,
// unban, activate, session revocation, token introspection, registration
// and posture reporting, over a shared Redis deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	goIdentity "github.com/MrEthical07/goIdentity"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	configPath := os.Getenv("GOIDENTITY_CONFIG")
	if configPath == "" {
		configPath = "goidentity.toml"
	}

	engine, cleanup, err := buildEngine(configPath)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "ban":
		err = cmdBan(ctx, engine, args, goIdentity.BanActionBan)
	case "unban":
		err = cmdBan(ctx, engine, args, goIdentity.BanActionUnban)
	case "activate":
		err = cmdActivate(ctx, engine, args)
	case "logout-all":
		err = cmdLogoutAll(ctx, engine, args)
	case "introspect":
		err = cmdIntrospect(ctx, engine, args)
	case "register":
		err = cmdRegister(ctx, engine, args)
	case "user":
		err = cmdUser(ctx, engine, args)
	case "report":
		err = cmdReport(engine)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: goidentity-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  user <username>        Show a user's account state and metadata")
	fmt.Println("  register <username>    Create a user (prompts for password)")
	fmt.Println("  activate <username>    Activate an account without a challenge")
	fmt.Println("  ban <username>         Ban a user and revoke all sessions")
	fmt.Println("  unban <username>       Lift a ban")
	fmt.Println("  logout-all <username>  Revoke every session of a user")
	fmt.Println("  introspect <token>     Decode and check a session token")
	fmt.Println("  report                 Print the effective security posture")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  GOIDENTITY_CONFIG         Config file path (default: goidentity.toml)")
	fmt.Println("  GOIDENTITY_JWT_KEY        Referenced as ${GOIDENTITY_JWT_KEY} in config")
	fmt.Println("  GOIDENTITY_CHALLENGE_KEY  Referenced as ${GOIDENTITY_CHALLENGE_KEY} in config")
}

func buildEngine(configPath string) (*goIdentity.Engine, func(), error) {
	fileCfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := fileCfg.engineConfig()
	if err != nil {
		return nil, nil, err
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    fileCfg.Redis.Addrs,
		Password: fileCfg.Redis.Password,
		DB:       fileCfg.Redis.DB,
	})

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(client).
		Build()
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	cleanup := func() {
		engine.Close()
		_ = client.Close()
	}
	return engine, cleanup, nil
}

func requireArg(args []string, name string) (string, error) {
	if len(args) < 1 || args[0] == "" {
		return "", fmt.Errorf("missing argument: %s", name)
	}
	return args[0], nil
}

func cmdBan(ctx context.Context, engine *goIdentity.Engine, args []string, action goIdentity.BanAction) error {
	username, err := requireArg(args, "username")
	if err != nil {
		return err
	}

	if err := engine.SetBanned(ctx, username, action); err != nil {
		return err
	}
	if action == goIdentity.BanActionBan {
		color.Green("banned %s and revoked all sessions", username)
	} else {
		color.Green("unbanned %s", username)
	}
	return nil
}

func cmdActivate(ctx context.Context, engine *goIdentity.Engine, args []string) error {
	username, err := requireArg(args, "username")
	if err != nil {
		return err
	}

	if err := engine.ActivateUser(ctx, username); err != nil {
		return err
	}
	color.Green("activated %s", username)
	return nil
}

func cmdLogoutAll(ctx context.Context, engine *goIdentity.Engine, args []string) error {
	username, err := requireArg(args, "username")
	if err != nil {
		return err
	}

	if err := engine.LogoutAll(ctx, username); err != nil {
		return err
	}
	color.Green("revoked all sessions of %s", username)
	return nil
}

func cmdIntrospect(ctx context.Context, engine *goIdentity.Engine, args []string) error {
	token, err := requireArg(args, "token")
	if err != nil {
		return err
	}

	info, err := engine.IntrospectSession(ctx, token)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "active\t%t\n", info.Active)
	if !info.Active {
		fmt.Fprintf(w, "reason\t%s\n", info.Reason)
	}
	if info.Username != "" {
		fmt.Fprintf(w, "username\t%s\n", info.Username)
		fmt.Fprintf(w, "audience\t%s\n", info.Audience)
		fmt.Fprintf(w, "jti\t%s\n", info.JTI)
		fmt.Fprintf(w, "issued\t%s\n", info.IssuedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "expires\t%s\n", info.ExpiresAt.Format(time.RFC3339))
	}
	for k, v := range info.Extra {
		fmt.Fprintf(w, "ext.%s\t%s\n", k, v)
	}
	return w.Flush()
}

func cmdRegister(ctx context.Context, engine *goIdentity.Engine, args []string) error {
	username, err := requireArg(args, "username")
	if err != nil {
		return err
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	res, err := engine.Register(ctx, username, password, "", nil)
	if err != nil {
		return err
	}

	if res.RequiresActivation {
		color.Green("registered %s (activation pending)", res.User.Username)
	} else {
		color.Green("registered %s (active)", res.User.Username)
	}
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if string(pw) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pw), nil
}

func cmdUser(ctx context.Context, engine *goIdentity.Engine, args []string) error {
	username, err := requireArg(args, "username")
	if err != nil {
		return err
	}

	view, err := engine.GetUser(ctx, username)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "username\t%s\n", view.Username)
	fmt.Fprintf(w, "active\t%t\n", view.Active)
	fmt.Fprintf(w, "banned\t%t\n", view.Banned)
	fmt.Fprintf(w, "created\t%s\n", view.CreatedAt.Format(time.RFC3339))
	for audience, fields := range view.Metadata {
		for k, v := range fields {
			fmt.Fprintf(w, "meta.%s.%s\t%s\n", audience, k, v)
		}
	}
	return w.Flush()
}

func cmdReport(engine *goIdentity.Engine) error {
	report, err := engine.SecurityReport()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "production mode\t%t\n", report.ProductionMode)
	fmt.Fprintf(w, "signing algorithm\t%s\n", report.SigningAlgorithm)
	fmt.Fprintf(w, "access ttl\t%s\n", report.AccessTTL)
	fmt.Fprintf(w, "challenge ttl\t%s\n", report.ChallengeTTL)
	fmt.Fprintf(w, "argon2\tm=%dKB t=%d p=%d\n",
		report.Argon2.Memory, report.Argon2.Time, report.Argon2.Parallelism)
	fmt.Fprintf(w, "activation required\t%t\n", report.ActivationRequired)
	fmt.Fprintf(w, "totp supported\t%t\n", report.TOTPSupported)
	fmt.Fprintf(w, "recovery codes\t%t\n", report.RecoveryCodesEnabled)
	fmt.Fprintf(w, "login lockout\t%t\n", report.LoginLockoutActive)
	fmt.Fprintf(w, "rate limiting\t%t\n", report.RateLimitingActive)
	fmt.Fprintf(w, "password reset\t%t\n", report.PasswordResetActive)
	fmt.Fprintf(w, "enumeration-safe reset\t%t\n", report.EnumerationSafeReset)
	fmt.Fprintf(w, "revocation watermarks\t%t\n", report.RevocationWatermarks)
	fmt.Fprintf(w, "audit trail\t%t\n", report.AuditTrailActive)
	return w.Flush()
}
