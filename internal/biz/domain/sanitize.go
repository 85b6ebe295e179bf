package domain

import (
	"regexp"
	"strings"
)

// ChannelMode selects how channel references are rewritten
type ChannelMode int

const (
	// ChannelKeepName replaces <#ID|name> with name, falling back to the marker
	ChannelKeepName ChannelMode = iota
	// ChannelMarker always replaces channel references with the marker
	ChannelMarker
)

const (
	MentionMarker     = "@MENTION"
	ChannelMarkerText = "@CHANNEL"
)

var (
	controlWhitespaceRe = regexp.MustCompile(`[\r\n\t]+`)
	userMentionRe       = regexp.MustCompile(`<@[^>|]+(?:\|[^>]*)?>`)
	channelMentionRe    = regexp.MustCompile(`<#([^>|]+)(?:\|([^>]*))?>`)
	labelledLinkRe      = regexp.MustCompile(`<([^>|]+)\|([^>]+)>`)
	leftoverTokenRe     = regexp.MustCompile(`<[^>]*>`)
)

// CleanMessageText strips Slack markup from a raw message body.
// Chat messages keep channel names; see CleanMessageTextWith for the marker mode.
func CleanMessageText(text string) string {
	return CleanMessageTextWith(text, ChannelKeepName)
}

// CleanMessageTextWith strips Slack markup using the given channel mode.
// The order of rewrites matters: mentions and channels must be handled
// before the generic link and leftover-token rules swallow them.
func CleanMessageTextWith(text string, mode ChannelMode) string {
	if text == "" {
		return ""
	}
	out := controlWhitespaceRe.ReplaceAllString(text, " ")
	out = userMentionRe.ReplaceAllString(out, MentionMarker)
	out = channelMentionRe.ReplaceAllStringFunc(out, func(token string) string {
		if mode == ChannelMarker {
			return ChannelMarkerText
		}
		sub := channelMentionRe.FindStringSubmatch(token)
		if len(sub) > 2 && strings.TrimSpace(sub[2]) != "" {
			return sub[2]
		}
		return ChannelMarkerText
	})
	out = labelledLinkRe.ReplaceAllString(out, "$2")
	out = leftoverTokenRe.ReplaceAllString(out, "")
	return collapseSpaces(out)
}
