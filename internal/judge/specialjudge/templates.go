package specialjudge

import "sort"

// Judge script templates for problem authors. Each reads the judge request as JSON on
// stdin and prints one verdict object.
var templates = map[string]string{
	"float_comparison": `import json
import sys


def judge(user_output, expected_output, config):
    eps = float(config.get("epsilon", 1e-6))
    try:
        got = [float(x) for x in user_output.split()]
        want = [float(x) for x in expected_output.split()]
    except ValueError:
        return {"result": "WRONG_ANSWER", "message": "输出包含非数值内容", "score": 0.0}
    if len(got) != len(want):
        return {"result": "WRONG_ANSWER", "message": "数值数量不匹配", "score": 0.0}
    if not want:
        return {"result": "ACCEPTED", "message": "浮点数比较通过", "score": 1.0}
    ok = sum(1 for a, b in zip(got, want) if abs(a - b) <= eps)
    score = ok / len(want)
    if score >= 0.99:
        return {"result": "ACCEPTED", "message": "浮点数比较通过", "score": 1.0}
    return {"result": "PARTIALLY_CORRECT", "message": "部分正确 (%d/%d)" % (ok, len(want)), "score": score}


if __name__ == "__main__":
    try:
        req = json.loads(sys.stdin.read())
        res = judge(req["user_output"], req["expected_output"], req.get("config") or {})
    except Exception as exc:
        res = {"result": "ERROR", "message": str(exc), "score": 0.0}
    print(json.dumps(res, ensure_ascii=False))
`,
	"multiple_solutions": `import json
import sys


def judge(user_output, config):
    answer = user_output.strip()
    solutions = [s.strip() for s in config.get("solutions", [])]
    if answer in solutions:
        return {"result": "ACCEPTED", "message": "多解验证通过", "score": 1.0}
    best = 0.0
    for sol in solutions:
        if answer and len(sol) == len(answer):
            same = sum(1 for a, b in zip(answer, sol) if a == b)
            best = max(best, same / len(answer))
    if best >= 0.8:
        return {"result": "PARTIALLY_CORRECT", "message": "部分匹配 (%.2f)" % best, "score": best}
    return {"result": "WRONG_ANSWER", "message": "未找到匹配的解", "score": best}


if __name__ == "__main__":
    try:
        req = json.loads(sys.stdin.read())
        res = judge(req["user_output"], req.get("config") or {})
    except Exception as exc:
        res = {"result": "ERROR", "message": str(exc), "score": 0.0}
    print(json.dumps(res, ensure_ascii=False))
`,
}

// Template returns a built-in judge script by name.
func Template(name string) (string, bool) {
	src, ok := templates[name]
	return src, ok
}

// TemplateNames lists the built-in templates in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
