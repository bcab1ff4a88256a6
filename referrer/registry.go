package referrer

import "strings"

type registryEntry struct {
	Type string
	Name string
}

// registry maps known referrer domains to their source type and display name.
// Lookups match the longest registered suffix of the hostname, so entries for
// specific subdomains (gemini.google.com) win over their parent (google.com).
var registry = map[string]registryEntry{
	// Search engines.
	"google.com":     {TypeSearch, "Google"},
	"bing.com":       {TypeSearch, "Bing"},
	"duckduckgo.com": {TypeSearch, "DuckDuckGo"},
	"yahoo.com":      {TypeSearch, "Yahoo"},
	"baidu.com":      {TypeSearch, "Baidu"},
	"yandex.ru":      {TypeSearch, "Yandex"},
	"yandex.com":     {TypeSearch, "Yandex"},
	"ecosia.org":     {TypeSearch, "Ecosia"},
	"startpage.com":  {TypeSearch, "Startpage"},
	"qwant.com":      {TypeSearch, "Qwant"},
	"search.brave.com": {TypeSearch, "Brave Search"},

	// Social networks.
	"facebook.com":       {TypeSocial, "Facebook"},
	"instagram.com":      {TypeSocial, "Instagram"},
	"twitter.com":        {TypeSocial, "Twitter"},
	"x.com":              {TypeSocial, "X"},
	"t.co":               {TypeSocial, "X"},
	"linkedin.com":       {TypeSocial, "LinkedIn"},
	"lnkd.in":            {TypeSocial, "LinkedIn"},
	"reddit.com":         {TypeSocial, "Reddit"},
	"pinterest.com":      {TypeSocial, "Pinterest"},
	"tiktok.com":         {TypeSocial, "TikTok"},
	"threads.net":        {TypeSocial, "Threads"},
	"mastodon.social":    {TypeSocial, "Mastodon"},
	"bsky.app":           {TypeSocial, "Bluesky"},
	"t.me":               {TypeSocial, "Telegram"},
	"wa.me":              {TypeSocial, "WhatsApp"},

	// Video platforms.
	"youtube.com": {TypeVideo, "YouTube"},
	"youtu.be":    {TypeVideo, "YouTube"},
	"vimeo.com":   {TypeVideo, "Vimeo"},
	"twitch.tv":   {TypeVideo, "Twitch"},

	// Email providers.
	"mail.google.com":  {TypeEmail, "Gmail"},
	"outlook.live.com": {TypeEmail, "Outlook"},
	"mail.yahoo.com":   {TypeEmail, "Yahoo Mail"},

	// News and aggregators.
	"news.google.com":     {TypeNews, "Google News"},
	"news.ycombinator.com": {TypeNews, "Hacker News"},
	"flipboard.com":       {TypeNews, "Flipboard"},
	"medium.com":          {TypeNews, "Medium"},
	"substack.com":        {TypeNews, "Substack"},

	// AI assistants.
	"chatgpt.com":       {TypeAI, "ChatGPT"},
	"chat.openai.com":   {TypeAI, "ChatGPT"},
	"perplexity.ai":     {TypeAI, "Perplexity"},
	"gemini.google.com": {TypeAI, "Gemini"},
	"claude.ai":         {TypeAI, "Claude"},
	"copilot.microsoft.com": {TypeAI, "Copilot"},
}

// lookup resolves a hostname against the registry using longest-suffix
// matching: the full hostname is tried first, then the leftmost label is
// stripped until an entry is found or labels are exhausted. Returns the entry
// and the registered domain it matched on.
func lookup(host string) (registryEntry, string, bool) {
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels)-1; i++ {
		candidate := strings.Join(labels[i:], ".")
		if entry, found := registry[candidate]; found {
			return entry, candidate, true
		}
	}
	return registryEntry{}, "", false
}
