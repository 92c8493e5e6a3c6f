package labels

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}

	return m
}

// stopWords is a standard English stop list.
var stopWords = set(
	"a", "about", "above", "across", "after", "afterwards", "again", "against", "all", "almost",
	"alone", "along", "already", "also", "although", "always", "am", "among", "amongst", "an",
	"and", "another", "any", "anyhow", "anyone", "anything", "anyway", "anywhere", "are",
	"around", "as", "at", "back", "be", "became", "because", "become", "becomes", "becoming",
	"been", "before", "beforehand", "behind", "being", "below", "beside", "besides", "between",
	"beyond", "both", "but", "by", "can", "cannot", "cant", "could", "couldnt", "did", "didnt",
	"do", "does", "doesnt", "doing", "done", "dont", "down", "due", "during", "each", "eg",
	"either", "else", "elsewhere", "enough", "etc", "even", "ever", "every", "everyone",
	"everything", "everywhere", "except", "few", "for", "former", "formerly", "from", "further",
	"get", "gets", "getting", "give", "go", "going", "got", "had", "has", "hasnt", "have",
	"having", "he", "hence", "her", "here", "hereafter", "hereby", "herein", "hers", "herself",
	"him", "himself", "his", "how", "however", "i", "ie", "if", "im", "in", "indeed", "into",
	"is", "isnt", "it", "its", "itself", "ive", "just", "keep", "last", "latter", "least",
	"less", "made", "make", "many", "may", "me", "meanwhile", "might", "mine", "more",
	"moreover", "most", "mostly", "much", "must", "my", "myself", "namely", "neither", "never",
	"nevertheless", "next", "nobody", "none", "nor", "not", "nothing", "now", "nowhere", "of",
	"off", "often", "on", "once", "one", "only", "onto", "or", "other", "others", "otherwise",
	"our", "ours", "ourselves", "out", "over", "own", "per", "perhaps", "please", "put",
	"rather", "really", "re", "same", "see", "seem", "seemed", "seeming", "seems", "several",
	"she", "should", "since", "so", "some", "somehow", "someone", "something", "sometime",
	"sometimes", "somewhere", "still", "such", "than", "that", "thats", "the", "their", "them",
	"themselves", "then", "thence", "there", "thereafter", "thereby", "therefore", "therein",
	"these", "they", "theyre", "this", "those", "though", "through", "throughout", "thru",
	"thus", "to", "together", "too", "toward", "towards", "under", "until", "up", "upon", "us",
	"very", "via", "was", "wasnt", "we", "well", "were", "werent", "weve", "what", "whatever",
	"when", "whence", "whenever", "where", "whereas", "whereby", "wherein", "whether", "which",
	"while", "who", "whoever", "whole", "whom", "whose", "why", "will", "with", "within",
	"without", "wont", "would", "wouldnt", "yet", "you", "youre", "your", "yours", "yourself",
	"yourselves", "want", "wants", "needs", "needed", "wish", "able", "lot", "lots", "ok", "okay", "hi", "thanks",
)

// companySuffixes mark a phrase as part of an organization name.
var companySuffixes = set("llc", "inc", "corp", "ltd", "co", "company", "industries", "solutions")

// commonNames are frequent personal names that must never surface in a label.
var commonNames = set(
	"nguyen", "robert", "chang", "rivera", "smith", "johnson", "williams", "brown", "jones",
	"garcia", "miller", "davis", "rodriguez", "martinez", "hernandez", "lopez", "gonzalez",
	"wilson", "anderson", "thomas", "taylor", "moore", "jackson", "martin", "lee", "perez",
	"thompson", "white", "harris", "kim", "chen", "wang", "liu", "singh", "kumar", "patel",
)

// genericWords carry no product meaning on their own.
var genericWords = set(
	"yes", "no", "weeks", "days", "months", "years", "concern", "million", "works", "says",
	"told", "asked", "mentioned", "discussed", "screens", "wide", "large", "small", "medium",
	"big", "thing", "things", "stuff", "way", "ways", "asks", "asking", "keeps", "keeping",
	"wanted", "wanting", "requested", "requesting",
)

// keepTerms are product vocabulary that stays even when written capitalized.
var keepTerms = set(
	"api", "sso", "saml", "oauth", "auth", "login", "security", "export", "import", "csv",
	"excel", "pdf", "mobile", "dashboard", "analytics", "reporting", "search", "filter",
	"webhook", "integration", "data", "user", "admin", "access", "permissions", "dark mode",
	"theme", "ui", "ux", "design", "performance", "loading", "speed", "error", "handling",
	"batch", "operations", "compliance", "requirements", "file", "upload", "download",
	"timeout", "limit", "size", "format", "validation", "notification", "email", "sync",
	"backup", "restore", "archive", "delete", "edit", "create", "update", "view", "list",
	"detail", "summary", "overview", "settings", "configuration", "setup", "devices",
	"providers", "registration", "delivery", "plan", "upgrades", "segment", "analysis", "tool",
	"maxes", "priorities", "implement", "need", "visibility", "usage", "failing", "optimize",
	"increase", "small", "like", "okta", "identity", "q1", "q2", "q3", "q4", "direct",
	"exports", "users",
)

// acronyms are rendered upper case in labels.
var acronyms = set("api", "sso", "saml", "csv", "pdf", "ui", "ux", "crm", "sdk", "url", "ai", "q1", "q2", "q3", "q4")
