package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func rootCommand() *cobra.Command {
	conf := viper.New()
	conf.SetEnvPrefix("MULTISIG")
	conf.AutomaticEnv()
	conf.SetDefault("server", "http://localhost:8080")

	rootCmd := &cobra.Command{
		Use:           "multisigctl",
		Short:         "Command line client for the multisig custody API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server", "", "API base URL (env MULTISIG_SERVER)")
	rootCmd.PersistentFlags().String("token", "", "bearer access token (env MULTISIG_TOKEN)")
	_ = conf.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = conf.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	client := func() *apiClient {
		return newAPIClient(conf.GetString("server"), conf.GetString("token"))
	}
	// call runs one request and prints the JSON response.
	call := func(cmd *cobra.Command, method, path string, body any) error {
		payload, err := client().do(cmd.Context(), method, path, body)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), payload)
	}

	var phone, pin, device string
	register := &cobra.Command{
		Use:   "register",
		Short: "register a new principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodPost, "/identity/register", map[string]any{"phone": phone, "pin": pin, "device_id": device})
		},
	}
	login := &cobra.Command{
		Use:   "login",
		Short: "obtain an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodPost, "/auth/login", map[string]any{"phone": phone, "pin": pin, "device_id": device})
		},
	}
	for _, c := range []*cobra.Command{register, login} {
		c.Flags().StringVar(&phone, "phone", "", "phone number")
		c.Flags().StringVar(&pin, "pin", "", "PIN")
		c.Flags().StringVar(&device, "device", "", "device identifier")
		_ = c.MarkFlagRequired("phone")
		_ = c.MarkFlagRequired("pin")
	}
	rootCmd.AddCommand(register, login)

	var (
		owners    []string
		threshold int
		category  string
		nonce     uint64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "create a multisig wallet owned by the given addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodPost, "/multisig", map[string]any{
				"owners": owners, "threshold": threshold, "category": category, "nonce": nonce,
			})
		},
	}
	create.Flags().StringSliceVar(&owners, "owner", nil, "owner address (repeatable)")
	create.Flags().IntVar(&threshold, "threshold", 2, "approvals required to execute")
	create.Flags().StringVar(&category, "category", "basic", "wallet category: basic or pro")
	create.Flags().Uint64Var(&nonce, "nonce", 0, "creator nonce, unique per wallet")
	rootCmd.AddCommand(create)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list wallets you own or created",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodGet, "/multisig", nil)
		},
	})

	for _, q := range []struct{ use, suffix, short string }{
		{"show", "", "show a wallet"},
		{"owners", "/owners", "list the owners of a wallet"},
		{"balance", "/balance", "show the live balance of a wallet"},
		{"proposals", "/proposals", "list pending proposals"},
		{"history", "/history", "list executed and cancelled proposals"},
	} {
		suffix := q.suffix
		rootCmd.AddCommand(&cobra.Command{
			Use:   q.use + " WALLET",
			Short: q.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, http.MethodGet, "/multisig/"+args[0]+suffix, nil)
			},
		})
	}

	propose := &cobra.Command{
		Use:   "propose WALLET DESTINATION AMOUNT",
		Short: "propose a transfer out of a wallet",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[2], err)
			}
			return call(cmd, http.MethodPost, "/multisig/"+args[0]+"/proposals", map[string]any{"destination": args[1], "amount": amount})
		},
	}
	rootCmd.AddCommand(propose)

	for _, action := range []struct{ use, short string }{
		{"approve", "approve a pending proposal"},
		{"cancel", "cancel a proposal you created"},
	} {
		name := action.use
		rootCmd.AddCommand(&cobra.Command{
			Use:   name + " WALLET PROPOSAL_ID",
			Short: action.short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, http.MethodPost, fmt.Sprintf("/multisig/%s/proposals/%s/%s", args[0], args[1], name), nil)
			},
		})
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "execute WALLET PROPOSAL_ID RECIPIENT",
		Short: "execute an approved proposal",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodPost, fmt.Sprintf("/multisig/%s/proposals/%s/execute", args[0], args[1]), map[string]any{"recipient": args[2]})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "add-owner WALLET OWNER",
		Short: "add an owner (wallet creator only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodPost, "/multisig/"+args[0]+"/owners", map[string]any{"owner": args[1]})
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "remove-owner WALLET OWNER",
		Short: "remove an owner (wallet creator only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodDelete, "/multisig/"+args[0]+"/owners/"+args[1], nil)
		},
	})

	var clientTxID string
	deposit := &cobra.Command{
		Use:   "deposit WALLET AMOUNT",
		Short: "credit a wallet from the funding rail",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			return call(cmd, http.MethodPost, "/multisig/"+args[0]+"/deposits", map[string]any{"amount": amount, "client_tx_id": clientTxID})
		},
	}
	deposit.Flags().StringVar(&clientTxID, "client-tx-id", "", "idempotency key for the deposit")
	rootCmd.AddCommand(deposit)

	return rootCmd
}

func printJSON(w io.Writer, payload []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		_, err = w.Write(payload)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
