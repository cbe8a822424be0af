// Package prompt assembles the text prompts sent to the generation
// service. Builders are pure string assembly; the only state is the
// tokenizer used to keep prompts inside the configured budget.
package prompt

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"adventure-server/internal/domain"
)

// maxSummaryEntries caps how many per-turn recaps are replayed into a
// prompt before the token budget is even considered.
const maxSummaryEntries = 16

// Builder renders prompts for every generation call the story flow makes.
type Builder struct {
	encoder     *tiktoken.Tiktoken
	tokenBudget int
}

// NewBuilder returns a Builder that trims story summaries to tokenBudget
// tokens, counted with the cl100k_base encoding.
func NewBuilder(tokenBudget int) (*Builder, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	if tokenBudget <= 0 {
		tokenBudget = 3000
	}
	return &Builder{encoder: enc, tokenBudget: tokenBudget}, nil
}

// trimSummary keeps the most recent summary entries that fit the token
// budget, newest entries win. At least one entry survives so the model
// always sees some history.
func (b *Builder) trimSummary(entries []string) []string {
	if len(entries) > maxSummaryEntries {
		entries = entries[len(entries)-maxSummaryEntries:]
	}
	total := 0
	counts := make([]int, len(entries))
	for i, e := range entries {
		counts[i] = len(b.encoder.Encode(e, nil, nil))
		total += counts[i]
	}
	start := 0
	for total > b.tokenBudget && start < len(entries)-1 {
		total -= counts[start]
		start++
	}
	return entries[start:]
}

func formatSummary(entries []string) string {
	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d: %s\n", i+1, e)
	}
	return sb.String()
}

func formatStats(stats domain.PlayerStats) string {
	return fmt.Sprintf(`- Moral Score: %d (-100 immoral to 100 moral)
- Risk Score: %d (0-100)
- Trait Consistency: %d (0-100)
- Creativity: %d (0-100)
- Success Rate: %d (0-100)`,
		stats.MoralScore, stats.RiskScore, stats.TraitConsistency,
		stats.Creativity, stats.SuccessRate)
}

func quoteTraits(traits []string) string {
	return `"` + strings.Join(traits, `", "`) + `"`
}

// Start renders the opening scene prompt for a fresh character setup.
func (b *Builder) Start(setup domain.CharacterSetup) string {
	return fmt.Sprintf(`Please read the following instructions carefully before proceeding:
You're an AI writing a text-based adventure game. The protagonist is %s, who is %s, with these quirks: %s and this backstory: "%s".
The genre of our game is %s. First, craft a compelling opening scene (65-200 words) that starts the adventure. Make sure to:
- When addressing the main character refer to them as "you" or "your"
- Choose a unique and lesser-known setting within the genre
- Use vivid language to write engaging sentences
- Build suspense and tension
- Introduce choices that have real consequences
- Present relationships between characters
- Balance action, dialogue, and description
- Surprise the reader with twists and subverted expectations
- Set the mood and atmosphere of the scene
- Avoid cliches and overused tropes
- Only incorporate character quirks and backstory if they fit the current scene

Second, create 2 to 4 game options that continue the story. Each option (10-30 words) should allow the player to explore the scene or interact with characters. Make sure each option fits the game's setting, leads to different story paths, and includes a risk level (low, medium, high). Include a "risky" option if possible.
Try to make options specific and unique to the current scene, and avoid common tropes when creating options.

For each option, include:
- Risk level (low, medium, high)
- Moral alignment (moral, immoral, or neutral)
- Character trait alignment where applicable (traitAlignment)

Strictly put your responses in this JSON format:
{
  "storyStart": "{opening paragraph or scene, 65-200 words}",
  "options": {
    "option1": {
      "text": "{option text, 10-30 words}",
      "risk": "{risk level, low, medium, high}",
      "alignment": "{moral, immoral, or neutral}",
      "traitAlignment": "{optional - name of character trait this aligns with}"
    }
  }
}`,
		setup.Character, setup.Gender, quoteTraits(setup.Traits), setup.Bio, setup.Genre)
}

// TurnInput carries everything a continuing-turn prompt needs.
type TurnInput struct {
	Setup             domain.CharacterSetup
	Summary           []string
	PreviousParagraph string
	ChoiceText        string
	Stats             domain.PlayerStats
	Outcome           domain.Outcome
	ScenarioType      domain.ScenarioType
	Turn              int
}

var scenarioInstructions = map[domain.ScenarioType]string{
	domain.ScenarioDilemma: `This is a DILEMMA scenario. Present a moral or ethical dilemma with no clear right answer.
- Make the player question their values
- Ensure both choices have meaningful consequences
- Tie the dilemma to the character's traits or backstory
- Show how this choice will impact others in the story world`,
	domain.ScenarioChallenge: `This is a CHALLENGE scenario. The character faces a significant obstacle that tests their abilities.
- Create tension and raise the stakes
- Make the challenge appropriate to the character's established abilities
- Offer both direct and creative approaches to overcome it
- Show how failure would impact their goals`,
	domain.ScenarioCompanion: `This is a COMPANION scenario. Introduce or develop a relationship with another character.
- Create a memorable character with their own motivations
- Show how they complement or challenge the main character
- Establish why they might help or hinder the protagonist
- Provide interaction options that reveal different aspects of both characters`,
	domain.ScenarioBetrayal: `This is a BETRAYAL scenario. Someone the character trusted shows signs of betrayal.
- Create emotional impact through the betrayal
- Make the betrayal believable within the story context
- Offer different ways to respond to the betrayal
- Reveal hidden motives or conflicting loyalties`,
	domain.ScenarioConsequence: `This is a CONSEQUENCE scenario. Previous choices have led to this moment.
- Show clear cause-and-effect relationships to previous decisions
- Create satisfying payoffs for earlier investments or sacrifices
- Reveal unexpected side effects of earlier choices
- Emphasize how the character's actions have changed the world`,
	domain.ScenarioMoralChoice: `This is a MORAL_CHOICE scenario. Force a clear ethical decision.
- Present a situation with significant moral implications
- Show competing values or priorities at stake
- Make both moral and immoral choices tempting for different reasons
- Illustrate potential costs of making the "right" choice`,
	domain.ScenarioStandard: `This is a STANDARD scenario. Advance the plot while developing character and world.
- Balance exploration, dialogue, and action
- Reveal new information about the story world
- Create opportunities for character growth
- Maintain narrative momentum`,
}

const earlyPhaseGuidance = `Early story phase: Focus on establishing the world and character motivations.
- Introduce elements that can be developed later
- Plant seeds for future conflicts
- Help define the character's role in this world`

const latePhaseGuidance = `Late story phase: Begin building toward a resolution.
- Call back to earlier decisions and their consequences
- Raise the stakes and emotional investment
- Start bringing storylines toward conclusion
- Deepen character development based on previous choices`

// Turn renders the prompt for a regular continuing turn.
func (b *Builder) Turn(in TurnInput) string {
	special := scenarioInstructions[in.ScenarioType]
	if in.Turn < 5 {
		special += "\n\n" + earlyPhaseGuidance
	} else if in.Turn >= 15 {
		special += "\n\n" + latePhaseGuidance
	}

	return fmt.Sprintf(`You're an AI continuing our text adventure game featuring "%s", who is %s, in the genre "%s". They have traits like %s, and a backstory "%s". Here's a brief of the recent plot and user choices:
%s
The player has made choices with these statistics:
%s

Given the recent events "%s" and the user's latest action "%s", craft the next segment (65-200 words).

The outcome of the player's last action is: %s.
The next scenario should be of type: %s.

%s

This is turn #%d of the story. Maintain narrative consistency while introducing fresh elements.

This segment should:
- Follow logically from previous events and user choices
- Use second person for the main character
- Incorporate literary techniques to enhance depth (e.g., foreshadowing, vivid imagery)
- Include immersive descriptions, build suspense, and develop character dynamics
- Offer balanced action, dialogue, and descriptions
- Reflect user decisions, maintaining all character traits and backstory relevance
- Clearly show the %s outcome of the player's previous choice

Provide 3-4 choices for further exploration, each distinct and logical:
- Include at least one option aligned with the character's traits (mark with traitAlignment)
- Include at least one option that goes against character traits
- Include options with varying risk levels (low, medium, high)
- Include at least one moral and one immoral option when appropriate
- Make sure each option leads to significantly different potential story branches

Strictly put your responses in this JSON format:
{
  "storySegment": "Text of the next story segment, 65-200 words",
  "options": {
    "option1": {
      "text": "Option text, 10-30 words",
      "risk": "low risk, medium risk, or high risk",
      "alignment": "moral, immoral, or neutral",
      "traitAlignment": "optional - name of character trait this aligns with"
    }
  },
  "outcome": "%s",
  "scenarioType": "%s"
}`,
		in.Setup.Character, in.Setup.Gender, in.Setup.Genre,
		quoteTraits(in.Setup.Traits), in.Setup.Bio,
		formatSummary(b.trimSummary(in.Summary)),
		formatStats(in.Stats),
		in.PreviousParagraph, in.ChoiceText,
		strings.ToUpper(string(in.Outcome)),
		strings.ToUpper(string(in.ScenarioType)),
		special,
		in.Turn,
		string(in.Outcome),
		in.Outcome, in.ScenarioType)
}

// EndingInput carries the fields for a late-game turn where the service
// decides whether to conclude.
type EndingInput struct {
	Setup      domain.CharacterSetup
	Summary    []string
	ChoiceText string
	Stats      domain.PlayerStats
}

// Ending renders the prompt that lets the service either conclude the
// story or escalate toward a climax, reporting its decision via isFinal.
func (b *Builder) Ending(in EndingInput) string {
	return fmt.Sprintf(`You are an AI guiding the next steps in our text-based adventure game. Remember, our main character is "%s", who is %s, belonging to the genre "%s". This character, endowed with unique traits [%s] and a compelling backstory "%s", is at the crux of the narrative.

Reflecting on the summary of the last turns here:
%s
and taking into account the user's recent choice "%s", decide if the story should climax and conclude, or if it needs to escalate towards a compelling resolution.

PLAYER STATISTICS:
%s

Based on these statistics, craft an appropriate ending or continuation:
- If moral score is very negative, consider a darker or more morally ambiguous ending
- If risk score is high, the ending should reflect the dangers they've faced
- If trait consistency is high, reward their character integrity
- If creativity is high, acknowledge their innovative approach
- If success rate is low, the ending may be more bittersweet

- If concluding: Set 'isFinal' to true. Craft a final segment (65-200 words) that delivers a fitting resolution aligned with the story's progression, thematic elements, and character development. The narrative should capture complex motivations, intertwining subplots or backstory elements, and evoke a strong emotional response like suspense or catharsis.
- If continuing: Set 'isFinal' to false. Develop the story further, heightening tension and progressing towards a climax. Introduce innovative twists, employing literary techniques such as foreshadowing, non-linear narratives, or vivid imagery to enhance depth and interest. Avoid cliches and ensure each segment is immersive, detailed, and respects the gravity of user decisions.

In both scenarios:
- Use second person ("you" or "your") to maintain an engaging, personal connection with the player
- Include detailed, immersive descriptions that bring scenes to life, heighten engagement, and build suspense
- Ensure the story progresses logically from previous segments, reflecting user choices and building upon them
- Develop character relationships and dynamics, balancing action, dialogue, and descriptive elements

If continuing, provide 2-4 options with varying risk levels and moral alignments.

Strictly put your responses in this JSON format:
{
  "storySegment": "Text of the final or ongoing story segment",
  "options": {
    "option1": {
      "text": "Option text, 10-30 words",
      "risk": "low, medium, or high",
      "alignment": "moral, immoral, or neutral",
      "traitAlignment": "optional - name of character trait this aligns with"
    }
  },
  "isFinal": true if concluding the story, otherwise false
}`,
		in.Setup.Character, in.Setup.Gender, in.Setup.Genre,
		strings.Join(in.Setup.Traits, ", "), in.Setup.Bio,
		formatSummary(b.trimSummary(in.Summary)),
		in.ChoiceText,
		formatStats(in.Stats))
}

// TurnSummary renders the prompt asking for a compact recap of one story
// segment, replayed into later prompts in place of the full text.
func (b *Builder) TurnSummary(segment string) string {
	return fmt.Sprintf(`Write a concise summary of this story segment "%s" in one paragraph no more than 40 words. The summary should include:
- Character interactions (actions, dialogues, emotions, reactions)
- Exact locations of characters and changes in location
- Current inventory of each character (acquisition, usage, or loss of items)
- Changes in character relationships (alliances, conflicts, interactions)
- Key events or discoveries that affect the story or characters
- Any other important details for narrative consistency and continuity

Strictly put your responses in this JSON format:

{
  "storySummary": "{summary of the story segment}"
}`, segment)
}

// WrapUp renders the final playthrough recap with score rubric and ending
// taxonomy.
func (b *Builder) WrapUp(summary []string, stats domain.PlayerStats) string {
	return fmt.Sprintf(`Imagine you're creating a "Story Wrapped" for this adventure, much like Spotify Wrapped but for the epic tale we've just experienced! Below is the entire story progression and player statistics:

STORY SUMMARY:
%s
PLAYER STATISTICS:
%s

Based on these statistics and the story progression, create a vibrant and shareable summary that captures the essence of the adventure:

1. **Epic Recap**: Whip up a catchy and fun summary of the story. Think of it as the back cover of a best-selling novel.
2. **Showstopper Moment**: Pinpoint the most thrilling or hilarious moment in the story. The kind of moment that would make headlines in the story world!
3. **Signature Move**: What's one thing the character just couldn't stop doing? Make it sound like a fun plot quirk that fans would tweet about.
4. **Character Quirk**: Shine a light on a hilarious or defining trait of the main character that made the story uniquely theirs.
5. **Theme Song**: If this story had a theme song, based on the main themes explored, what would it be? Describe it in a fun way that matches the story's vibe.
6. **Overall Score**: Rate the player's journey on a scale of 1-100 based on their choices, creativity, and the overall narrative they created.
7. **Score Breakdown**: Provide scores (1-100) for:
   - Decision Quality: How wise were their choices? (Based on success rate)
   - Character Consistency: How well did they stay true to their character?
   - Creative Problem-Solving: How innovative were their solutions?
   - Moral Compass: How ethical were their decisions? (Higher for moral, lower for immoral)
8. **Ending Type**: Classify the ending based on the player's moral score and success rate:
   - "Heroic Victory" (high moral, high success)
   - "Pyrrhic Victory" (high moral, low success)
   - "Antihero Triumph" (low moral, high success)
   - "Tragic Downfall" (low moral, low success)
   - "Bittersweet Resolution" (mixed moral, mixed success)
   - Or another fitting category that best describes their unique ending

Please format the responses like this, ready to be shared and enjoyed on social media in this JSON format:
{
  "wrapUpParagraph": "{Epic Recap text}",
  "bigMoment": "{Showstopper Moment}",
  "frequentActivity": "{Signature Move}",
  "characterTraitHighlight": "{Character Quirk}",
  "themeExploration": "{Theme Song}",
  "overallScore": number between 1-100,
  "scoreBreakdown": {
    "decisions": number between 1-100,
    "consistency": number between 1-100,
    "creativity": number between 1-100,
    "morality": number between 1-100
  },
  "endingType": "Type of ending"
}`, formatSummary(summary), formatStats(stats))
}

// Character renders the character profile generation prompt.
func (b *Builder) Character(genre, character string) string {
	return fmt.Sprintf(`Construct a detailed character profile for a text-adventure game based on the genre '%s' and the main character '%s'. Include these components:

1. Five personality traits that display a mix of good and bad qualities. Consider various personalities from adventurous to mundane.
2. A gender for the character: male, female, or non-binary.
3. A short bio (up to 70 words) emphasizing the character's unique skills and abilities. Incorporate 2-4 abilities or skills, which may be exceptional talents, learned skills, or supernatural powers, depending on the genre. Avoid cliches by thinking of less commonly used character descriptions in the genre. Don't mention specific locations or future plans.

For the chosen gender please always use the correct pronouns in the bio and quirks.
Please output the information in the following JSON format, never include any text or anything else than the JSON:

{
  "characterQuirks": ["quirk-1", "quirk-2", "quirk-3", "quirk-4", "quirk-5"],
  "characterGender": "specified gender",
  "characterBio": "detailed biography, max 70 words"
}`, genre, character)
}
