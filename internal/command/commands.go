package command

import (
	"fmt"
	"regexp"
	"strings"

	"wabot/internal/domain"
)

// Command pairs a body predicate with the gateway request it produces.
type Command struct {
	Name  string
	Match func(body string) bool
	Build func(msg domain.InboundMessage) domain.Request
}

const (
	// userSuffix is appended by the gateway to personal chat ids.
	userSuffix = "@c.us"

	groupName    = "Bot group"
	groupWelcome = "Welcome to the new group!"
	photoCaption = "Text under the photo."

	locationLat     = 51.178843
	locationLng     = -1.82621
	locationAddress = "Stonehenge"
)

var fileRE = regexp.MustCompile(`file (pdf|jpg|doc|mp3)`)

// attachments maps a requested file type to the file name served from the
// bot's files directory.
var attachments = map[string]string{
	"doc": "tra.docx",
	"jpg": "tra.jpg",
	"mp3": "tra.mp3",
	"pdf": "tra.pdf",
}

const voiceFile = "tra.ogg"

func contains(sub string) func(string) bool {
	return func(body string) bool { return strings.Contains(body, sub) }
}

// HelpText returns the usage text addressed to senderName.
func HelpText(senderName string) string {
	return senderName + `,  this is a demo bot for https://chat-api.com/.
Commands:
1. chatId - view the current chat ID
2. file [pdf/jpg/doc/mp3] - get a file
3. ptt - get a voice message
4. geo - get a location
5. group - create a group with you and the bot`
}

// Defaults returns the bot's commands in precedence order. botURL is the
// public base URL the attachments are served under.
func Defaults(botURL string) []Command {
	botURL = strings.TrimRight(botURL, "/")

	return []Command{
		{
			Name:  "help",
			Match: contains("help"),
			Build: func(msg domain.InboundMessage) domain.Request {
				return domain.Request{Method: "message", Params: map[string]any{
					"chatId": msg.ChatID,
					"body":   HelpText(msg.SenderName),
				}}
			},
		},
		{
			Name:  "chatId",
			Match: contains("chatId"),
			Build: func(msg domain.InboundMessage) domain.Request {
				return domain.Request{Method: "message", Params: map[string]any{
					"chatId": msg.ChatID,
					"body":   msg.ChatID,
				}}
			},
		},
		{
			Name:  "file",
			Match: fileRE.MatchString,
			Build: func(msg domain.InboundMessage) domain.Request {
				ext := fileRE.FindStringSubmatch(msg.Body)[1]
				params := map[string]any{
					"phone":    msg.Author,
					"body":     botURL + "/" + attachments[ext],
					"filename": fmt.Sprintf("File *.%s", ext),
				}
				if ext == "jpg" {
					params["caption"] = photoCaption
				}
				return domain.Request{Method: "sendFile", Params: params}
			},
		},
		{
			Name:  "ptt",
			Match: contains("ptt"),
			Build: func(msg domain.InboundMessage) domain.Request {
				return domain.Request{Method: "sendAudio", Params: map[string]any{
					"audio":  botURL + "/" + voiceFile,
					"chatId": msg.ChatID,
				}}
			},
		},
		{
			Name:  "geo",
			Match: contains("geo"),
			Build: func(msg domain.InboundMessage) domain.Request {
				return domain.Request{Method: "sendLocation", Params: map[string]any{
					"lat":     locationLat,
					"lng":     locationLng,
					"address": locationAddress,
					"chatId":  msg.ChatID,
				}}
			},
		},
		{
			Name:  "group",
			Match: contains("group"),
			Build: func(msg domain.InboundMessage) domain.Request {
				return domain.Request{Method: "group", Params: map[string]any{
					"groupName":   groupName,
					"phones":      []string{strings.Replace(msg.Author, userSuffix, "", 1)},
					"messageText": groupWelcome,
				}}
			},
		},
	}
}

// AttachmentFiles lists every file the commands link to, in a stable order.
func AttachmentFiles() []string {
	return []string{attachments["pdf"], attachments["jpg"], attachments["doc"], attachments["mp3"], voiceFile}
}
