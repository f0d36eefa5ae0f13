package i18n

// ZhCNMessages 简体中文消息目录
// ZhCNMessages Simplified Chinese message catalog
var ZhCNMessages = map[string]string{
	// UI - 面板标题
	"panel.chat":      "对话",
	"panel.selection": "已选照片",
	"panel.logs":      "日志",

	// UI - 状态栏
	"status.library":             "图库",
	"status.idle":                "就绪",
	"status.loading":             "思考中...",
	"status.requires_permission": "等待授权",
	"status.busy":                "上一个请求仍在处理中",

	// UI - 输入
	"input.placeholder": "询问你的照片...（回车发送）",
	"input.suggestions": "建议：%s",

	// UI - 快捷键
	"keys.enter": "enter 发送",
	"keys.esc":   "esc 退出",
	"keys.yn":    "y 允许 / n 拒绝",

	// 授权
	"consent.title":  "需要授权",
	"consent.delete": "将 %d 张照片移到回收站？",
	"consent.write":  "将 %d 张照片移动到相册 %q？",
	"consent.prompt": "允许此操作？[y/N]",
	"consent.allow":  "允许",
	"consent.deny":   "拒绝",
	"consent.none":   "当前没有等待授权的请求",

	// 工具消息
	"tool.search.found":         "找到 %d 张照片。",
	"tool.search.unranked":      "显示符合筛选条件的 %d 张照片。",
	"tool.search.no_candidates": "没有照片符合这些筛选条件。",
	"tool.search.no_match":      "没有找到与 %q 相似的照片。",
	"tool.delete.done":          "已将 %d 张照片移到回收站。",
	"tool.delete.denied":        "删除已取消：未获得授权。",
	"tool.move.done":            "已将 %d 张照片移动到 %s。",
	"tool.move.partial":         "部分照片未能移动到 %s。",
	"tool.move.denied":          "移动已取消：未获得授权。",
	"tool.collage.done":         "已用 %d 张照片生成拼图。",
	"tool.filter.done":          "已对 %[2]d 张照片应用 %[1]s 滤镜。",
	"tool.cleanup.found":        "找到 %d 组重复照片，共 %d 张多余副本。",
	"tool.cleanup.none":         "没有发现重复照片。",
	"tool.restore.done":         "已恢复 %d 张照片。",

	// 错误
	"error.planner":    "规划器错误：%s",
	"error.no_actions": "规划器要求执行操作，但没有给出任何操作。",
	"error.status":     "规划器返回了未知状态：%s",
	"error.tool":       "工具错误：%s",

	// 命令
	"cmd.help":       "显示可用命令",
	"cmd.select":     "选择照片：/select <uri> [uri...]",
	"cmd.clear":      "清除当前选择",
	"cmd.suggest":    "发送建议操作：/suggest <n>",
	"cmd.allow":      "允许待处理的请求",
	"cmd.deny":       "拒绝待处理的请求",
	"cmd.exit":       "退出",
	"cmd.unknown":    "未知命令：%s",
	"cmd.selected":   "已选择 %d 张照片",
	"cmd.no_suggest": "没有第 %s 条建议",

	// 会话
	"session.new":     "新会话：%s",
	"session.resumed": "已恢复会话：%s（%d 条消息）",

	// 启动
	"startup.welcome":   "photoagent 已启动，图库：%s",
	"startup.planner":   "规划器：%s",
	"startup.repl_mode": "以 REPL 模式运行",
}
