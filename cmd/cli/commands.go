package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/and161185/goph-chat/api/chatv1"
	"github.com/and161185/goph-chat/internal/wire"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		email, _ := f.GetString("email")
		password, _ := f.GetString("password")
		first, _ := f.GetString("first-name")
		last, _ := f.GetString("last-name")
		color, _ := f.GetInt("color")

		cc, cl, err := dialer(connection(), "")
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
		defer cancel()
		resp, err := cl.Register(ctx, &chatv1.RegisterRequest{
			Email: email, Password: password, FirstName: first, LastName: last, Color: color,
		})
		if err != nil {
			return err
		}
		printJSON(cmd.OutOrStdout(), resp.User)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		cc, cl, err := dialer(connection(), "")
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
		defer cancel()
		resp, err := cl.Login(ctx, &chatv1.LoginRequest{Email: email, Password: password})
		if err != nil {
			return err
		}
		if err := saveSession(session{
			AccessToken: resp.AccessToken,
			ExpiresAt:   resp.ExpiresAt,
			UserID:      resp.User.ID,
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", resp.User.Email, resp.User.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return clearSession()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a conversation or a channel's messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		with, _ := cmd.Flags().GetString("with")
		channel, _ := cmd.Flags().GetString("channel")
		if (with == "") == (channel == "") {
			return errors.New("exactly one of --with and --channel is required")
		}

		cc, cl, _, err := client()
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
		defer cancel()
		var resp *chatv1.HistoryResponse
		if with != "" {
			resp, err = cl.Conversation(ctx, &chatv1.ConversationRequest{Contact: with})
		} else {
			resp, err = cl.ChannelHistory(ctx, &chatv1.ChannelHistoryRequest{ChannelID: channel})
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i := range resp.Messages {
			fmt.Fprintln(out, formatMessage(&resp.Messages[i]))
		}
		return nil
	},
}

var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Manage channels",
}

var channelCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a channel you administer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		members, _ := cmd.Flags().GetStringSlice("member")

		cc, cl, _, err := client()
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
		defer cancel()
		resp, err := cl.CreateChannel(ctx, &chatv1.CreateChannelRequest{Name: args[0], Members: members})
		if err != nil {
			return err
		}
		printJSON(cmd.OutOrStdout(), resp.Channel)
		return nil
	},
}

var channelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your channels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cc, cl, _, err := client()
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
		defer cancel()
		resp, err := cl.ListChannels(ctx, &chatv1.ListChannelsRequest{})
		if err != nil {
			return err
		}
		printJSON(cmd.OutOrStdout(), resp.Channels)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload an attachment and print the URL to send",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		st, err := os.Stat(path)
		if err != nil {
			return err
		}
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return err
		}

		cc, cl, _, err := client()
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
		defer cancel()
		up, err := cl.RequestUpload(ctx, &chatv1.UploadRequest{
			FileName:    filepath.Base(path),
			ContentType: mt.String(),
			Size:        st.Size(),
		})
		if err != nil {
			return err
		}
		if err := putFile(ctx, up.PutURL, path, mt.String(), st.Size()); err != nil {
			return err
		}
		printJSON(cmd.OutOrStdout(), wire.Inbound{
			MessageType: "file",
			FileURL:     up.FileURL,
			FileName:    filepath.Base(path),
			FileSize:    st.Size(),
			ContentType: mt.String(),
		})
		return nil
	},
}

// putFile uploads path to a presigned URL.
func putFile(ctx context.Context, url, path, contentType string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("upload: %s", resp.Status)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().String("email", "", "account email")
		c.Flags().String("password", "", "account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	registerCmd.Flags().String("first-name", "", "first name")
	registerCmd.Flags().String("last-name", "", "last name")
	registerCmd.Flags().Int("color", 0, "profile color index")

	historyCmd.Flags().String("with", "", "contact user id")
	historyCmd.Flags().String("channel", "", "channel id")

	channelCreateCmd.Flags().StringSlice("member", nil, "member user id (repeatable)")
	channelCmd.AddCommand(channelCreateCmd, channelListCmd)
}
