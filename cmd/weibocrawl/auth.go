package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"weibocrawl/pkg/auth"
	"weibocrawl/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Weibo sessions",
	Long: `Manage the browser cookies used to reach the Weibo API.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (WEIBOCRAWL_COOKIES, read only)

The cookies give full access to the account. Never share them.`,
}

// setCmd represents the auth set command
var setCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Store browser cookies securely",
	Long: `Store the Cookie header of a logged-in browser session under a name.

You will be prompted for:
  - A name for the credential (if not provided)
  - The Cookie header (input is hidden)
  - The browser user agent (optional, press Enter for the default)`,
	Example: `  # Interactive
  weibocrawl auth set

  # Store under a given name
  weibocrawl auth set work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAuthSet,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	Args:  cobra.NoArgs,
	Run:   runAuthList,
}

// removeCmd represents the auth remove command
var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored credential",
	Args:    cobra.ExactArgs(1),
	Run:     runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(removeCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	} else {
		fmt.Print("Credential name (default): ")
		name = readLine(reader)
		if name == "" {
			name = "default"
		}
	}
	if err := auth.ValidateName(name); err != nil {
		ui.PrintError("Invalid credential name", err.Error())
		os.Exit(1)
	}

	auth.ShowQuickExtractGuide()

	var cookies string
	for {
		fmt.Print("\nCookie header (hidden): ")
		cookies, err = readPassword(reader)
		if err != nil {
			ui.PrintError("Failed to read cookies", err.Error())
			os.Exit(1)
		}

		if strings.EqualFold(cookies, "help") {
			auth.ShowCookieExtractionGuide()
			continue
		}

		if _, err := (&auth.Credential{Name: name, Cookies: cookies}).Normalize(); err != nil {
			ui.PrintError("Cannot use these cookies", err.Error())
			fmt.Println("   Example: SUB=_2A25...; XSRF-TOKEN=abc123")
			continue
		}
		break
	}

	fmt.Print("\nUser agent (press Enter to use the default): ")
	userAgent := readLine(reader)

	cred := &auth.Credential{
		Name:      name,
		Cookies:   cookies,
		UserAgent: userAgent,
	}

	if err := manager.Store(cred); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	fmt.Println("\nSummary:")
	fmt.Printf("   Name: %s\n", cred.Name)
	fmt.Printf("   Cookies: %s\n", cred.Masked().Cookies)
	if cred.UserAgent != "" {
		fmt.Printf("   User Agent: %s\n", cred.UserAgent)
	}

	ui.PrintSuccess("Credential saved: " + cred.Name)
	fmt.Println("\nUse it with:")
	fmt.Printf("  weibocrawl crawl --credential %s\n", cred.Name)
}

func runAuthList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if err := printCredentials(os.Stdout, manager); err != nil {
		ui.PrintError("Failed to list credentials", err.Error())
		os.Exit(1)
	}
}

// printCredentials writes every stored credential with masked cookies
func printCredentials(w io.Writer, manager *auth.Manager) error {
	creds, err := manager.List()
	if err != nil {
		return err
	}

	if len(creds) == 0 {
		ui.PrintInfo("No stored credentials", "Use 'weibocrawl auth set' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Credentials")
	fmt.Fprintln(w)
	for i, cred := range creds {
		sanitized := cred.Masked()
		fmt.Fprintf(w, "%d. Name: %s\n", i+1, sanitized.Name)
		fmt.Fprintf(w, "   Cookies: %s\n", sanitized.Cookies)
		if sanitized.UserAgent != "" {
			fmt.Fprintf(w, "   User Agent: %s\n", sanitized.UserAgent)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(w, "   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	name := args[0]
	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove credential", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Credential removed: " + name)
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readPassword reads a line from stdin without echoing when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
