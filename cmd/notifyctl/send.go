package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sapliy/notification-center/internal/notification"
	"github.com/sapliy/notification-center/pkg/messaging"
)

var (
	sendType    string
	sendContent string
	sendUsers   []string
	sendFileID  string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Publish a dispatch task to the notification queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		task := notification.DispatchTask{
			Content:   sendContent,
			Type:      notification.Type(sendType),
			UserIDs:   sendUsers,
			CreatedBy: "notifyctl",
		}
		if !notification.ValidType(task.Type) {
			return fmt.Errorf("unknown notification type %q", sendType)
		}
		if sendFileID != "" {
			task.ActionType = notification.ActionFile
			task.Action = map[string]any{"file_id": sendFileID}
		}

		body, err := json.Marshal(task)
		if err != nil {
			return err
		}

		client, err := messaging.NewClient(messaging.DefaultConfig(viper.GetString("rabbitmq_url")))
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer client.Close()

		if _, err := client.DeclareQueueWithDLQ(notification.DispatchQueue); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Publish(ctx, notification.DispatchQueue, body); err != nil {
			return err
		}

		fmt.Printf("dispatched %q to %d recipient(s)\n", sendContent, len(sendUsers))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Mint a development JWT for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := notification.GenerateToken(viper.GetString("jwt_secret"), args[0], []string{"user"})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendType, "type", string(notification.TypeInformation), "notification type (Success, Fail, Warning, Information)")
	sendCmd.Flags().StringVar(&sendContent, "content", "", "notification content")
	sendCmd.Flags().StringSliceVar(&sendUsers, "user", nil, "recipient user id (repeatable)")
	sendCmd.Flags().StringVar(&sendFileID, "file-id", "", "attach a File action pointing at this file id")
	sendCmd.MarkFlagRequired("content")
	sendCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(tokenCmd)
}
