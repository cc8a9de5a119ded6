package generator

import (
	"fmt"
	"strings"

	"portfolio-quiz-service/internal/domain"
)

// portfolioContext feeds the about_me prompt. Factual data only; the model is
// told to keep questions verifiable against it.
const portfolioContext = `
Name: Vengatesh K
Title: Full Stack Developer (MERN) with 3+ years of experience
Location: Cuddalore, India

Experience:
1. Support Studio Technologies (June 2025 - Sep 2025) - Full Stack Developer
   - Developed ERP modules using Next.js, TypeScript, Tailwind CSS
   - Mentored junior developers
2. AgileSoftLabs (Nov 2024 - May 2025) - Full Stack Developer
   - Built production-ready apps with Next.js, Node.js, MongoDB
   - Achieved 85%+ test coverage with Jest
3. Redblox Technologies (Oct 2022 - Nov 2024) - Full Stack Developer
   - Built apps with React Native and Laravel

Projects:
1. Next Street - Platform for entrepreneurs (React, Nest.js, Redux, Jest)
2. Workspace 360 - ERP suite (Next.js, Node.js, Express, TypeScript)
3. Spryntz - Food ordering app (React Native, Laravel, Stripe)
4. Producer Bazaar - NFT marketplace for movie rights (Next.js, MongoDB)

Skills:
- Frontend: React, Next.js, React Native, TypeScript, Redux, Tailwind
- Backend: Node.js, Express, Nest.js, Laravel, PHP, Python
- Databases: MongoDB, PostgreSQL, MySQL, Redis

Certifications:
- MERN Stack Development (Guvi, 2024)
- Crash Course on Python (Coursera by Google, 2023)

Education:
- B.Sc Mathematics (2019) - St. Joseph's College, Cuddalore
- B.Ed Mathematics (2021) - TVR College of Education, Puducherry
`

const responseShape = `IMPORTANT: Return ONLY a valid JSON object with this exact structure:
{
  "question": "The question text",
  "options": ["Option A", "Option B", "Option C", "Option D"],
  "correctIndex": 0
}

Where correctIndex is 0-3 indicating which option is correct.`

// buildPrompts assembles the system and user prompts for a category and an
// exclusion list of already-asked question texts.
func buildPrompts(category domain.Category, previous []string) (system, user string) {
	exclusions := strings.Join(previous, ", ")

	if category == domain.CategoryAboutMe {
		system = "You are a quiz question generator for a portfolio website. " +
			"Generate questions about the portfolio owner based on the provided context. " +
			"Questions should be factual and verifiable from the portfolio data.\n\n" + responseShape
		user = fmt.Sprintf(`Portfolio Context:
%s

Previously asked questions (avoid these):
%s

Generate a new, unique multiple-choice question about the portfolio owner's career, skills, experience, projects, education, or certifications. Make it interesting and varied. Return only the JSON object.`, portfolioContext, exclusions)
		return system, user
	}

	system = "You are a technical quiz question generator specializing in MERN stack development. " +
		"Generate simple to medium difficulty MCQ questions covering JavaScript fundamentals, " +
		"React concepts, Node.js and Express, MongoDB, TypeScript basics, and web security.\n\n" + responseShape
	user = fmt.Sprintf(`Previously asked questions (avoid these):
%s

Generate a new, unique MERN stack development question. Mix between theory, code snippets, and practical scenarios. Difficulty: Simple to Medium. Return only the JSON object.`, exclusions)
	return system, user
}

// fallbackQuestion is returned when the model reply cannot be parsed into a
// well-formed question. Callers may see the same fallback repeatedly.
func fallbackQuestion(category domain.Category) domain.Question {
	if category == domain.CategoryAboutMe {
		return domain.Question{
			Text:         "What is Vengatesh's primary role?",
			Options:      []string{"Full Stack Developer", "Data Scientist", "DevOps Engineer", "UI Designer"},
			CorrectIndex: 0,
		}
	}
	return domain.Question{
		Text:         "Which hook is used for side effects in React?",
		Options:      []string{"useState", "useEffect", "useContext", "useReducer"},
		CorrectIndex: 1,
	}
}
