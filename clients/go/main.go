// tweets CLI - Command line client for the tweets service
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/eldtechnologies/tweets/clients/go/tweets"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := tweets.NewClient(os.Getenv("TWEETS_URL"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		if resp != nil {
			printJSON(resp)
		}
		exitOnError(err)

	case "stats":
		resp, err := client.Stats(ctx)
		exitOnError(err)
		fmt.Printf("%d tweets, last activity %s\n", resp.TotalTweets, resp.LastActivity)
		printTweets(resp.Recent)

	case "read":
		resp, err := client.ListTweets(ctx)
		exitOnError(err)
		printTweets(resp)

	case "post":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: tweets post <message>")
			os.Exit(1)
		}
		message := strings.Join(os.Args[2:], " ")
		resp, err := client.PostTweet(ctx, &message)
		exitOnError(err)
		fmt.Printf("Posted: %s\n", resp.ID)

	case "hello":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: tweets hello <name>")
			os.Exit(1)
		}
		resp, err := client.Hello(ctx, os.Args[2])
		exitOnError(err)
		fmt.Println(resp)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func printTweets(list []tweets.Tweet) {
	for _, t := range list {
		ts := t.CreatedAt.Local().Format("2006-01-02 15:04:05")
		fmt.Printf("[%s] %s: %s\n", ts, t.ID[:8], t.Message)
	}
}

func usage() {
	fmt.Println(`tweets CLI

Usage: tweets <command> [options]

Commands:
  post <message>   Post a tweet
  read             List tweets, newest first
  hello <name>     Ask the server for a greeting
  stats            Show store statistics
  health           Check server health

Environment:
  TWEETS_URL   Server URL (default: http://127.0.0.1:8080)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
