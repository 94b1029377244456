package describe

import (
	"fmt"

	"reelsync/platform"
)

const defaultSystemPrompt = "You are a social media expert who writes engaging, accurate descriptions " +
	"for short vertical videos. Your tone is friendly and authentic. You use emojis strategically " +
	"and format content for maximum engagement."

func userPrompt(target platform.Target, transcript, hashtags string) string {
	tags := ""
	if hashtags != "" {
		tags = "\n- Always include these hashtags: " + hashtags
	}

	switch target {
	case platform.YouTube:
		return fmt.Sprintf(`Based on this video transcription, create a YouTube Shorts TITLE and DESCRIPTION.

TRANSCRIPTION:
%q

TITLE:
- Start with a relevant emoji
- Short and catchy, at most %d characters
- A hook that makes people want to watch

DESCRIPTION:
- Start with a clear explanation of the topic
- Use short bullet points with emojis for examples and tips
- End with a call to action and 3-6 hashtags%s
- At most %d characters

RESPOND IN THIS EXACT FORMAT:
TITLE: [your title here]
DESCRIPTION: [your description here]`,
			transcript, platform.MaxYouTubeTitle, tags, platform.MaxYouTubeDescription)

	case platform.Instagram:
		return fmt.Sprintf(`Based on this video transcription, create an Instagram Reels caption.

TRANSCRIPTION:
%q

GUIDE:
- Start with an emoji and a catchy hook
- A brief explanation of the topic
- Examples as bullet points with emojis
- End with a call to action to save and share
- End with 5-10 hashtags on a new line%s
- At most %d characters

Respond ONLY with the caption, no explanations.`,
			transcript, tags, platform.MaxInstagramCaption)

	case platform.TikTok:
		return fmt.Sprintf(`Based on this video transcription, create a TikTok caption.

TRANSCRIPTION:
%q

GUIDE:
- Start with an emoji and a personal hook
- Conversational and relatable, brief and punchy
- A few practical tips as bullet points
- End with a call to action and 3-5 trending hashtags%s
- At most %d characters

Respond ONLY with the caption, no explanations.`,
			transcript, tags, platform.MaxTikTokTitle)
	}
	return ""
}
