package chat

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResponseHelpers(t *testing.T) {
	Convey("Given a mixed response", t, func() {
		resp := Response{
			StopReason: StopToolUse,
			Blocks: []Block{
				TextBlock("Let me check. "),
				ToolUseBlock("t1", "list_tasks", json.RawMessage(`{}`)),
				TextBlock("One moment."),
				ToolUseBlock("t2", "get_stats", nil),
			},
		}

		Convey("Text joins only the text blocks", func() {
			So(resp.Text(), ShouldEqual, "Let me check. One moment.")
		})

		Convey("ToolUses keeps request order", func() {
			uses := resp.ToolUses()
			So(len(uses), ShouldEqual, 2)
			So(uses[0].ToolUseID, ShouldEqual, "t1")
			So(uses[1].ToolName, ShouldEqual, "get_stats")
		})

		Convey("Message copies the blocks", func() {
			msg := resp.Message()
			So(msg.Role, ShouldEqual, RoleAssistant)
			msg.Blocks[0].Text = "changed"
			So(resp.Blocks[0].Text, ShouldEqual, "Let me check. ")
		})
	})
}
