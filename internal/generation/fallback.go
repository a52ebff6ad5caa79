package generation

import (
	"fmt"
	"strings"

	"github.com/visara/reading-engine/internal/reading"
)

// FallbackHeaders are the five fixed section headers of the deterministic
// reading. Tests and the presentation layer rely on these exact strings.
var FallbackHeaders = []string{
	"Your Essence",
	"Your Strengths",
	"Your Relationships",
	"Your Path",
	"Your Year Ahead",
}

// FallbackReading assembles the deterministic backstop reading from the
// subject's name and questionnaire answers. No model output is involved; the
// legacy flow substitutes this whenever the escalation ladder fails, so the
// end user never sees a content failure.
func FallbackReading(gctx reading.GenerationContext) string {
	name := gctx.Name
	if name == "" {
		name = "Friend"
	}
	answers := gctx.QuizAnswers

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s, this reading was prepared just for you.\n\n", name))

	sb.WriteString(FallbackHeaders[0] + "\n\n")
	sb.WriteString(fmt.Sprintf("At your core, %s, you carry a quiet depth that people sense before you say a word. ", name))
	sb.WriteString("You move through the world with more awareness than you let on, noticing the small shifts in a room that others miss. ")
	if answer, ok := answers["self_description"]; ok {
		sb.WriteString(fmt.Sprintf("When you describe yourself as %q, you are naming only the surface of it. ", answer))
	}
	sb.WriteString("The same sensitivity that sometimes feels like a burden is the foundation of everything distinctive about you.\n\n")

	sb.WriteString(FallbackHeaders[1] + "\n\n")
	sb.WriteString("Your greatest strength is persistence that does not announce itself. You return to what matters after setbacks that would convince others to stop. ")
	if answer, ok := answers["proud_of"]; ok {
		sb.WriteString(fmt.Sprintf("What you shared about %q shows this clearly: you finish what you decide is worth finishing. ", answer))
	}
	sb.WriteString("You also read people accurately, which makes your judgment better than you give it credit for. Trust it more.\n\n")

	sb.WriteString(FallbackHeaders[2] + "\n\n")
	sb.WriteString("In relationships you give more than you ask for, and the people closest to you know it, even when they forget to say so. ")
	if answer, ok := answers["relationship_status"]; ok {
		sb.WriteString(fmt.Sprintf("Where you stand today, %s, is a chapter, not the whole story. ", answer))
	}
	sb.WriteString("The connections that last for you are the ones where you let yourself be seen early, rather than earning closeness through usefulness. ")
	sb.WriteString("One relationship in your life is ready to deepen the moment you stop managing it.\n\n")

	sb.WriteString(FallbackHeaders[3] + "\n\n")
	sb.WriteString("Your path is not a straight line, and it was never going to be. The detours you regret taught you the exact skills your next chapter requires. ")
	if answer, ok := answers["main_goal"]; ok {
		sb.WriteString(fmt.Sprintf("The goal you named, %s, is closer than it feels; what stands between you and it is a decision, not a distance. ", answer))
	}
	sb.WriteString("You do your best work when you build slowly and refuse to compare your timeline to anyone else's.\n\n")

	sb.WriteString(FallbackHeaders[4] + "\n\n")
	sb.WriteString(fmt.Sprintf("The coming year rewards the version of %s who acts before feeling ready. ", name))
	sb.WriteString("Expect a door to open through a person you already know, in a context you would not predict. ")
	sb.WriteString("Guard your energy in the middle months; the opportunity that matters arrives when you have kept something in reserve. ")
	sb.WriteString("By this time next year, one thing you currently call impossible will simply be something you did.\n")

	return sb.String()
}
